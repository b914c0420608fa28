package domain

type SendTextRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type SendMediaRequest struct {
	To        string `json:"to"`
	MediaType string `json:"media_type"`
	Link      string `json:"link"`
	Caption   string `json:"caption"`
	Filename  string `json:"filename"`
}

type SendLocationRequest struct {
	To        string  `json:"to"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
}

type CreateTemplateRequest struct {
	Name      string   `json:"name"`
	Content   string   `json:"content"`
	Variables []string `json:"variables"`
	Category  string   `json:"category"`
}

type SendTemplateRequest struct {
	TemplateName string            `json:"template_name"`
	To           string            `json:"to"`
	Variables    map[string]string `json:"variables"`
}

// SendApprovedTemplateRequest sends a template approved by Meta. Parameters
// fill the body placeholders {{1}}, {{2}}... in order.
type SendApprovedTemplateRequest struct {
	TemplateName string   `json:"template_name"`
	To           string   `json:"to"`
	Language     string   `json:"language"`
	Parameters   []string `json:"parameters"`
	HeaderText   string   `json:"header_text"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// SendResult is returned by every send operation.
type SendResult struct {
	MessageID string   `json:"message_id,omitempty"`
	Sent      bool     `json:"sent"`
	Message   *Message `json:"message"`
}
