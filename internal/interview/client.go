package interview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// StreamOpener abre un POST cuyo cuerpo de respuesta se consume como stream. transport.Client lo implementa.
type StreamOpener interface {
	OpenStream(ctx context.Context, path, contentType string, body io.Reader) (io.ReadCloser, error)
}

// Client habla con los endpoints de entrevista.
type Client struct {
	streams StreamOpener
}

func NewClient(streams StreamOpener) *Client {
	return &Client{streams: streams}
}

type conductRequest struct {
	Transcript string `json:"interviewTranscript"`
	Question   string `json:"interviewQuestion"`
}

// Question pide el borrador de la pregunta de entrevista para una descripcion de puesto.
func (c *Client) Question(ctx context.Context, jobDescription string) (io.ReadCloser, error) {
	return c.streams.OpenStream(ctx, "/interview/question", "text/plain; charset=utf-8", strings.NewReader(jobDescription))
}

// Conduct pide la siguiente intervencion del entrevistador.
func (c *Client) Conduct(ctx context.Context, transcript, question string) (io.ReadCloser, error) {
	body, err := json.Marshal(conductRequest{Transcript: transcript, Question: question})
	if err != nil {
		return nil, fmt.Errorf("marshal conduct request: %w", err)
	}
	return c.streams.OpenStream(ctx, "/interview/conduct", "application/json", bytes.NewReader(body))
}

// Feedback pide la devolucion final sobre la transcripcion.
func (c *Client) Feedback(ctx context.Context, transcript string) (io.ReadCloser, error) {
	return c.streams.OpenStream(ctx, "/interview/feedback", "text/plain; charset=utf-8", strings.NewReader(transcript))
}
