package domain

// User is a ChatBird account as returned by the REST API.
type User struct {
	ID                string
	Name              string
	Email             string
	PreferredLanguage string
}

// Participant is a conversation member, denormalized so the recipient
// can be rendered without another lookup.
type Participant struct {
	ID                string
	ConversationID    string
	Name              string
	Email             string
	PreferredLanguage string
}

func (p *Participant) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.Name != "" {
		return p.Name
	}
	return p.Email
}

// Session is the process-wide identity context created at startup after
// login. It is passed by reference to the socket client and the REST
// client instead of being looked up ambiently.
type Session struct {
	UserID            string
	Name              string
	Token             string
	PreferredLanguage string
}

func (s *Session) Language() string {
	if s == nil || s.PreferredLanguage == "" {
		return "en"
	}
	return s.PreferredLanguage
}
