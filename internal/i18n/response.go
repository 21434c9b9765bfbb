package i18n

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RespondWithSuccess sends a success response with a translated message.
func RespondWithSuccess(c *gin.Context, statusCode int, msgID string, data map[string]any, payload interface{}) {
	message := msgID
	if t := GetTranslator(); t != nil {
		message = t.Translate(msgID, contextLang(c), data)
	}

	response := gin.H{"message": message}
	for k, v := range data {
		response[k] = v
	}
	if payload != nil {
		response["data"] = payload
	}

	c.JSON(statusCode, response)
}

// SuccessResponse is a success response under construction.
type SuccessResponse struct {
	StatusCode int
	MsgID      string
	Data       map[string]interface{}
	Payload    interface{}
}

// Success creates a success response with status code 200.
func Success(msgID string) *SuccessResponse {
	return &SuccessResponse{StatusCode: http.StatusOK, MsgID: msgID}
}

// Created creates a success response with status code 201.
func Created(msgID string) *SuccessResponse {
	return &SuccessResponse{StatusCode: http.StatusCreated, MsgID: msgID}
}

// With adds a key-value pair to the response data.
func (r *SuccessResponse) With(key string, value interface{}) *SuccessResponse {
	if r.Data == nil {
		r.Data = make(map[string]interface{})
	}
	r.Data[key] = value
	return r
}

// WithPayload sets the payload for the response.
func (r *SuccessResponse) WithPayload(payload interface{}) *SuccessResponse {
	r.Payload = payload
	return r
}

// Send sends the response to the client.
func (r *SuccessResponse) Send(c *gin.Context) {
	RespondWithSuccess(c, r.StatusCode, r.MsgID, r.Data, r.Payload)
}
