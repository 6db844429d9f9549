package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tamj/internal/models"
	"tamj/pkg/logger"
)

// IdentityToolkit talks to the Firebase Auth REST API
// (https://identitytoolkit.googleapis.com/v1).
type IdentityToolkit struct {
	apiKey   string
	baseURL  string
	language string
	client   *http.Client
	logger   *logger.Logger
}

func NewIdentityToolkit(apiKey, baseURL, language string) *IdentityToolkit {
	return &IdentityToolkit{
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger.NewNop(),
	}
}

func (p *IdentityToolkit) WithLogger(l *logger.Logger) *IdentityToolkit {
	p.logger = l
	return p
}

// provider error strings look like "WEAK_PASSWORD : Password should be at least 6 characters"
var toolkitCodes = []struct {
	prefix string
	code   Code
}{
	{"EMAIL_EXISTS", CodeDuplicateAccount},
	{"INVALID_EMAIL", CodeInvalidEmail},
	{"WEAK_PASSWORD", CodeWeakPassword},
	{"EMAIL_NOT_FOUND", CodeAccountNotFound},
	{"INVALID_PASSWORD", CodeInvalidCredential},
	{"INVALID_LOGIN_CREDENTIALS", CodeInvalidCredential},
	{"TOO_MANY_ATTEMPTS_TRY_LATER", CodeTooManyRequests},
}

func mapToolkitError(message string) *Error {
	for _, c := range toolkitCodes {
		if strings.HasPrefix(message, c.prefix) {
			return newError(c.code, nil)
		}
	}
	return newError(CodeProvider, errors.New(message))
}

type toolkitUser struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IDToken     string `json:"idToken"`
}

func (u toolkitUser) user() models.User {
	return models.User{UID: u.LocalID, Email: u.Email, DisplayName: u.DisplayName}
}

// jpost POSTs body as JSON to accounts:<method> and decodes the response into out.
func (p *IdentityToolkit) jpost(ctx context.Context, method string, body, out any) error {
	if p.apiKey == "" {
		return newError(CodeProvider, errors.New("identity toolkit api key is not configured"))
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return newError(CodeProvider, err)
	}
	addr := fmt.Sprintf("%s/accounts:%s?key=%s", p.baseURL, method, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr, bytes.NewReader(payload))
	if err != nil {
		return newError(CodeProvider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.language != "" {
		req.Header.Set("X-Firebase-Locale", p.language)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return newError(CodeProvider, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return newError(CodeProvider, err)
	}

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(buf.Bytes(), &failure); err != nil || failure.Error.Message == "" {
			return newError(CodeProvider, fmt.Errorf("accounts:%s: %s", method, resp.Status))
		}
		return mapToolkitError(failure.Error.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(buf.Bytes(), out); err != nil {
		return newError(CodeProvider, err)
	}
	return nil
}

func (p *IdentityToolkit) Register(ctx context.Context, email, password, name string) (models.User, error) {
	var created toolkitUser
	err := p.jpost(ctx, "signUp", map[string]any{
		"email":             strings.TrimSpace(email),
		"password":          password,
		"returnSecureToken": true,
	}, &created)
	if err != nil {
		return models.User{}, err
	}
	if name != "" {
		var updated toolkitUser
		err := p.jpost(ctx, "update", map[string]any{
			"idToken":           created.IDToken,
			"displayName":       name,
			"returnSecureToken": false,
		}, &updated)
		if err != nil {
			// the account exists either way; failing here would make a retry a duplicate
			p.logger.Warnw("Failed to set display name", "uid", created.LocalID, "error", err)
			return created.user(), nil
		}
		created.DisplayName = name
	}
	return created.user(), nil
}

func (p *IdentityToolkit) Login(ctx context.Context, email, password string) (models.User, models.Plan, error) {
	var signedIn toolkitUser
	err := p.jpost(ctx, "signInWithPassword", map[string]any{
		"email":             strings.TrimSpace(email),
		"password":          password,
		"returnSecureToken": true,
	}, &signedIn)
	if err != nil {
		return models.User{}, "", err
	}
	return signedIn.user(), "", nil
}

// Logout has nothing to revoke: the toolkit's tokens are held by the caller.
func (p *IdentityToolkit) Logout(context.Context) error { return nil }

func (p *IdentityToolkit) ResetPassword(ctx context.Context, email string) error {
	return p.jpost(ctx, "sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       strings.TrimSpace(email),
	}, nil)
}
