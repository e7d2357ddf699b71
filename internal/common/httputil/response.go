package httputil

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
)

const (
	ContentTypeJSON     = "application/json"
	ContentTypeJSONUTF8 = "application/json;charset=UTF-8"
)

// MessageResponse is the envelope for client errors (400/404/405)
type MessageResponse struct {
	Msg string `json:"msg"`
}

// FailureResponse is the envelope for unexpected failures (500)
type FailureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// JSON writes v as the response body with the given status
func JSON(ctx *fasthttp.RequestCtx, v interface{}, statusCode int) {
	body, err := json.Marshal(v)
	if err != nil {
		Failure(ctx, "failed to encode response")
		return
	}
	ctx.SetStatusCode(statusCode)
	ctx.SetContentType(ContentTypeJSONUTF8)
	ctx.SetBody(body)
}

// Message writes a {msg} envelope
func Message(ctx *fasthttp.RequestCtx, msg string, statusCode int) {
	body, _ := json.Marshal(MessageResponse{Msg: msg})
	ctx.SetStatusCode(statusCode)
	ctx.SetContentType(ContentTypeJSON)
	ctx.SetBody(body)
}

// BadRequest writes a 400 {msg}. CORS headers are left to the caller.
func BadRequest(ctx *fasthttp.RequestCtx, msg string) {
	Message(ctx, msg, fasthttp.StatusBadRequest)
}

func NotFound(ctx *fasthttp.RequestCtx) {
	Message(ctx, "Not Found", fasthttp.StatusNotFound)
}

func MethodNotAllowed(ctx *fasthttp.RequestCtx) {
	Message(ctx, "Method Not Allowed", fasthttp.StatusMethodNotAllowed)
}

// NoContent writes an empty 204, used for CORS preflight
func NoContent(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusNoContent)
	ctx.ResetBody()
}

// Failure writes a 500 {success:false,message} envelope.
// Any previously set body is discarded.
func Failure(ctx *fasthttp.RequestCtx, message string) {
	body, _ := json.Marshal(FailureResponse{Success: false, Message: message})
	ctx.Response.ResetBody()
	ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	ctx.SetContentType(ContentTypeJSON)
	ctx.SetBody(body)
}

// RequestURL reconstructs the absolute URL of the inbound request.
// X-Forwarded-Proto wins over the listener scheme when set.
func RequestURL(ctx *fasthttp.RequestCtx) string {
	scheme := string(ctx.Request.Header.Peek("X-Forwarded-Proto"))
	if scheme != "http" && scheme != "https" {
		scheme = string(ctx.URI().Scheme())
	}
	return scheme + "://" + string(ctx.Host()) + string(ctx.RequestURI())
}
