package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                    = 0
	CodeBadRequest            = 40000
	CodeInvalidInput          = 40001
	CodeUnauthorized          = 40100
	CodeInvalidCredentials    = 40101
	CodeEmailNotConfirmed     = 40102
	CodeSessionExpired        = 40103
	CodeNotFound              = 40400
	CodeConflict              = 40900
	CodeEmailExists           = 40901
	CodeSendInFlight          = 40902
	CodeInternalServer        = 50000
	CodeStoreFailed           = 50200
	CodeConfigurationRequired = 50300
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// ErrorWithData is Error plus a payload, used to hand back the unchanged
// snapshot when an action fails.
func ErrorWithData(c *gin.Context, httpStatus, code int, message string, data interface{}) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}
