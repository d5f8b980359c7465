package chat

import "chat-client/internal/domain"

// Observer recibe copias de las conversaciones despues de cada cambio, en orden.
// Los callbacks corren sin locks del controlador: pueden usar Current, Conversation,
// TurnState y Conversations, pero no operaciones que publiquen cambios (Submit, Cancel,
// Create, Rename, Delete, reacciones, ediciones), que esperarian su propia entrega.
type Observer interface {
	ConversationChanged(conv domain.Conversation)
	ConversationRemoved(id string)
}

// ObserverFuncs adapta funciones sueltas a Observer; cualquiera puede ser nil.
type ObserverFuncs struct {
	Changed func(conv domain.Conversation)
	Removed func(id string)
}

func (o ObserverFuncs) ConversationChanged(conv domain.Conversation) {
	if o.Changed != nil {
		o.Changed(conv)
	}
}

func (o ObserverFuncs) ConversationRemoved(id string) {
	if o.Removed != nil {
		o.Removed(id)
	}
}
