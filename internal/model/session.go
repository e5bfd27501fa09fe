package model

type State string

const (
	StateAnonymous     State = "anonymous"
	StateLoading       State = "loading"
	StateAuthenticated State = "authenticated"
	StateFailed        State = "failed"
)

// Session is the UI-visible projection of the authentication state.
type Session struct {
	State           State        `json:"state"`
	User            *UserProfile `json:"user"`
	Token           string       `json:"-"`
	IsAuthenticated bool         `json:"isAuthenticated"`
	Loading         bool         `json:"loading"`
	Error           string       `json:"error,omitempty"`
}

func (s Session) HasToken() bool {
	return s.Token != ""
}

// Clone returns a copy that shares no pointers with s.
func (s Session) Clone() Session {
	out := s
	if s.User != nil {
		user := *s.User
		out.User = &user
	}
	return out
}

// Consistent reports whether the authenticated flag agrees with user and token.
func (s Session) Consistent() bool {
	if s.IsAuthenticated {
		return s.User != nil && s.Token != ""
	}
	return true
}

func AnonymousSession() Session {
	return Session{State: StateAnonymous}
}

func FailedSession(reason string) Session {
	return Session{State: StateFailed, Error: reason}
}

func AuthenticatedSession(user UserProfile, token string) Session {
	return Session{
		State:           StateAuthenticated,
		User:            &user,
		Token:           token,
		IsAuthenticated: true,
	}
}
