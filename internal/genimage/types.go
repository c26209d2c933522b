package genimage

import (
	"fmt"
	"net/http"
	"strings"
)

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content      *content `json:"content"`
		FinishReason string   `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type httpStatusError struct {
	StatusCode int
	Status     string
	Message    string
	Body       string
}

func (e *httpStatusError) Error() string {
	detail := strings.TrimSpace(e.Message)
	if detail == "" {
		detail = strings.TrimSpace(e.Body)
	}
	if e.Status != "" {
		return fmt.Sprintf("model request: http %d %s: %s", e.StatusCode, e.Status, detail)
	}
	return fmt.Sprintf("model request: http %d: %s", e.StatusCode, detail)
}

// serverFault reports the internal/server-error signature that is worth retrying.
func (e *httpStatusError) serverFault() bool {
	if e.StatusCode >= http.StatusInternalServerError {
		return true
	}
	switch strings.ToUpper(e.Status) {
	case "INTERNAL", "UNAVAILABLE":
		return true
	}
	return false
}

// TextResponseError is returned when the model answers with words instead of an image.
type TextResponseError struct {
	Text string
}

func (e *TextResponseError) Error() string {
	return "model returned text instead of an image: " + e.Text
}
