package email

type Message struct {
	To          []string
	CC          []string
	BCC         []string
	Subject     string
	TextBody    string
	HTMLBody    string
	Headers     map[string]string
	Attachments []Attachment
}

// Attachment is an in-memory file attached to a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}
