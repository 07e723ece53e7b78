package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"mailpilot-backend/internal/triage/domain"
	"mailpilot-backend/pkg/log"
	"mailpilot-backend/pkg/retry"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// TokenUpdateFunc is a callback invoked when the OAuth token is refreshed.
type TokenUpdateFunc func(token *oauth2.Token) error

type Service struct {
	clientID     string
	clientSecret string
	policy       retry.Policy
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			log.FromCtx(context.Background()).Warn().Err(err).Msg("failed to persist refreshed token")
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret string, policy retry.Policy) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		policy:       policy,
	}
}

// ForUser binds the service to one user's credentials, yielding the
// mailbox capability the pipeline consumes.
func (s *Service) ForUser(userID, accessToken, refreshToken string, onRefresh TokenUpdateFunc) *UserMailbox {
	return &UserMailbox{
		svc:          s,
		userID:       userID,
		accessToken:  accessToken,
		refreshToken: refreshToken,
		onRefresh:    onRefresh,
	}
}

// UserMailbox implements domain.Mailbox for a single Gmail account.
type UserMailbox struct {
	svc          *Service
	userID       string
	accessToken  string
	refreshToken string
	onRefresh    TokenUpdateFunc
}

func (m *UserMailbox) gmailService(ctx context.Context) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken:  m.accessToken,
		RefreshToken: m.refreshToken,
		TokenType:    "Bearer",
	}

	// Only force refresh if we have a refresh token
	if m.refreshToken != "" {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     m.svc.clientID,
		ClientSecret: m.svc.clientSecret,
		Endpoint:     google.Endpoint,
	}

	wrappedSource := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		callback: m.onRefresh,
	}

	client := oauth2.NewClient(ctx, wrappedSource)

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// Search runs one provider query expression and returns lightweight stubs.
func (m *UserMailbox) Search(ctx context.Context, query string, maxResults int64) ([]domain.MessageStub, error) {
	srv, err := m.gmailService(ctx)
	if err != nil {
		return nil, err
	}

	if maxResults <= 0 {
		maxResults = 20
	}
	if maxResults > 500 {
		maxResults = 500 // Gmail API maximum
	}

	var resp *gmail.ListMessagesResponse
	err = m.svc.policy.Do(ctx, func(ctx context.Context) error {
		call := srv.Users.Messages.List("me").MaxResults(maxResults).Context(ctx)
		if query != "" {
			call = call.Q(query)
		}
		resp, err = call.Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("unable to search messages: %w", err)
	}

	stubs := make([]domain.MessageStub, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		stubs = append(stubs, domain.MessageStub{ID: msg.Id, ThreadID: msg.ThreadId})
	}
	return stubs, nil
}

// Fetch retrieves the full message and decodes its body.
func (m *UserMailbox) Fetch(ctx context.Context, id string) (*domain.Message, error) {
	srv, err := m.gmailService(ctx)
	if err != nil {
		return nil, err
	}

	var msg *gmail.Message
	err = m.svc.policy.Do(ctx, func(ctx context.Context) error {
		msg, err = srv.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve message: %w", err)
	}

	return m.convertMessage(msg), nil
}

// Helper functions

func (m *UserMailbox) convertMessage(msg *gmail.Message) *domain.Message {
	from := getHeader(msg.Payload.Headers, "From")
	fromName := from
	// Extract name from "Name <email@example.com>" format
	if idx := strings.Index(from, "<"); idx > 0 {
		fromName = strings.TrimSpace(from[:idx])
	}

	body, isHTML := getMessageBody(msg.Payload)
	if isHTML {
		body = stripHTML(body)
	}

	return &domain.Message{
		ID:         msg.Id,
		UserID:     m.userID,
		ThreadID:   msg.ThreadId,
		From:       from,
		FromName:   fromName,
		Subject:    getHeader(msg.Payload.Headers, "Subject"),
		Snippet:    msg.Snippet,
		Body:       body,
		ReceivedAt: time.Unix(msg.InternalDate/1000, 0),
		Labels:     domain.StringArray(msg.LabelIds),
	}
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if header.Name == name {
			return header.Value
		}
	}
	return ""
}

func getMessageBody(payload *gmail.MessagePart) (string, bool) {
	// If the payload itself is the body
	if payload.Body != nil && payload.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(payload.Body.Data)
		if err == nil {
			return string(data), payload.MimeType == "text/html"
		}
	}

	var htmlBody string
	var plainBody string

	var findBody func(parts []*gmail.MessagePart)
	findBody = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.MimeType == "text/html" {
				if part.Body != nil && part.Body.Data != "" {
					data, err := base64.URLEncoding.DecodeString(part.Body.Data)
					if err == nil {
						htmlBody = string(data)
					}
				}
			} else if part.MimeType == "text/plain" {
				if part.Body != nil && part.Body.Data != "" {
					data, err := base64.URLEncoding.DecodeString(part.Body.Data)
					if err == nil {
						plainBody = string(data)
					}
				}
			}

			if len(part.Parts) > 0 {
				findBody(part.Parts)
			}
		}
	}

	findBody(payload.Parts)

	if plainBody != "" {
		return plainBody, false
	}
	return htmlBody, true
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

func stripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&quot;", "\"")
	return strings.Join(strings.Fields(s), " ")
}
