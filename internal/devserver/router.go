package devserver

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter arma el router con logging, recovery, JSON por defecto y JWT en las rutas protegidas.
func NewRouter(
	logger *zap.Logger,
	tokens *TokenService,
	authH *AuthHandler,
	chatH *ChatHandler,
	interviewH *InterviewHandler,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	auth := r.Group("/auth")
	auth.POST("/login", authH.Login)
	auth.POST("/refresh", authH.Refresh)

	chats := r.Group("/chats", JWTAuthMiddleware(tokens))
	chats.GET("", chatH.ListChats)
	chats.POST("", chatH.CreateChat)
	chats.PUT("/:id", chatH.RenameChat)
	chats.DELETE("/:id", chatH.DeleteChat)
	chats.GET("/:id/messages", chatH.ListMessages)
	chats.POST("/:id/messages", chatH.PostMessage)

	interview := r.Group("/interview", JWTAuthMiddleware(tokens))
	interview.POST("/question", interviewH.Question)
	interview.POST("/conduct", interviewH.Conduct)
	interview.POST("/feedback", interviewH.Feedback)

	return r
}
