package domain

import "fmt"

// Payload is the body Meta POSTs to the webhook endpoint.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         Metadata         `json:"metadata"`
	Contacts         []Contact        `json:"contacts,omitempty"`
	Messages         []InboundMessage `json:"messages,omitempty"`
	Statuses         []StatusUpdate   `json:"statuses,omitempty"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string  `json:"wa_id"`
	Profile Profile `json:"profile"`
}

type Profile struct {
	Name string `json:"name"`
}

// ContactName devuelve el nombre de perfil asociado a waID
func (v Value) ContactName(waID string) string {
	for _, c := range v.Contacts {
		if c.WaID == waID {
			return c.Profile.Name
		}
	}
	if len(v.Contacts) == 1 {
		return v.Contacts[0].Profile.Name
	}
	return ""
}

type InboundMessage struct {
	From        string            `json:"from"`
	ID          string            `json:"id"`
	Timestamp   string            `json:"timestamp"`
	Type        string            `json:"type"`
	Context     *MessageContext   `json:"context,omitempty"`
	Text        *TextBody         `json:"text,omitempty"`
	Image       *Media            `json:"image,omitempty"`
	Video       *Media            `json:"video,omitempty"`
	Audio       *Media            `json:"audio,omitempty"`
	Sticker     *Media            `json:"sticker,omitempty"`
	Document    *Media            `json:"document,omitempty"`
	Location    *Location         `json:"location,omitempty"`
	Reaction    *Reaction         `json:"reaction,omitempty"`
	Button      *Button           `json:"button,omitempty"`
	Interactive *InteractiveReply `json:"interactive,omitempty"`
}

type MessageContext struct {
	From string `json:"from"`
	ID   string `json:"id"`
}

type TextBody struct {
	Body string `json:"body"`
}

type Media struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	Sha256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

type Reaction struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type Button struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

type InteractiveReply struct {
	Type        string      `json:"type"`
	ButtonReply *ReplyTitle `json:"button_reply,omitempty"`
	ListReply   *ReplyTitle `json:"list_reply,omitempty"`
}

type ReplyTitle struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type StatusUpdate struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	Timestamp   string        `json:"timestamp"`
	RecipientID string        `json:"recipient_id"`
	Errors      []StatusError `json:"errors,omitempty"`
}

type StatusError struct {
	Code  int    `json:"code"`
	Title string `json:"title"`
}

// Content is what gets persisted for an inbound message.
type Content struct {
	Type     string
	Text     string
	MediaID  string
	Metadata map[string]any
}

// Extract returns the stored type, text and media reference of the message.
// Messages without text fall back to "(type)".
func (m InboundMessage) Extract() Content {
	c := Content{Type: m.Type, Metadata: map[string]any{"timestamp": m.Timestamp, "raw_type": m.Type}}
	if c.Type == "" {
		c.Type = "text"
	}
	if m.Context != nil && m.Context.ID != "" {
		c.Metadata["reply_to"] = m.Context.ID
	}

	switch m.Type {
	case "text":
		if m.Text != nil {
			c.Text = m.Text.Body
		}
	case "image", "video", "audio", "sticker":
		media := m.media()
		if media != nil {
			c.MediaID = media.ID
			c.Text = media.Caption
		}
	case "document":
		if m.Document != nil {
			c.MediaID = m.Document.ID
			c.Text = m.Document.Filename
		}
	case "location":
		if m.Location != nil {
			c.Text = fmt.Sprintf("📍 %.6f, %.6f", m.Location.Latitude, m.Location.Longitude)
			if m.Location.Name != "" {
				c.Text = "📍 " + m.Location.Name
			}
			c.Metadata["latitude"] = m.Location.Latitude
			c.Metadata["longitude"] = m.Location.Longitude
		}
	case "reaction":
		if m.Reaction != nil {
			c.Text = m.Reaction.Emoji
			c.Metadata["reacted_to"] = m.Reaction.MessageID
		}
	case "button":
		if m.Button != nil {
			c.Type = "button_reply"
			c.Text = "[Button Click] " + m.Button.Payload
			c.Metadata["callback_data"] = m.Button.Payload
		}
	case "interactive":
		if m.Interactive != nil {
			if r := m.Interactive.ButtonReply; r != nil {
				c.Type = "button_reply"
				c.Text = "[Button Click] " + r.ID
				c.Metadata["callback_data"] = r.ID
			} else if r := m.Interactive.ListReply; r != nil {
				c.Type = "list_reply"
				c.Text = "[Menu Selection] " + r.Title
				c.Metadata["callback_data"] = r.ID
				c.Metadata["title"] = r.Title
				c.Metadata["description"] = r.Description
			}
		}
	}

	if c.MediaID != "" {
		c.Metadata["media_id"] = c.MediaID
	}
	if c.Text == "" {
		c.Text = "(" + m.Type + ")"
	}
	return c
}

func (m InboundMessage) media() *Media {
	switch m.Type {
	case "image":
		return m.Image
	case "video":
		return m.Video
	case "audio":
		return m.Audio
	case "sticker":
		return m.Sticker
	}
	return nil
}
