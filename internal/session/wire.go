package session

import (
	"encoding/json"
	"time"

	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const (
	actionLogin    = "login"
	actionRegister = "register"
	actionRefresh  = "refresh"
)

type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type Registration struct {
	Username  string      `json:"username" validate:"required,max=150"`
	Email     string      `json:"email" validate:"required,email"`
	Password  string      `json:"password" validate:"required,min=6"`
	Role      domain.Role `json:"role" validate:"required,oneof=customer tailor"`
	Latitude  *float64    `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64    `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	FirstName string      `json:"first_name,omitempty"`
	LastName  string      `json:"last_name,omitempty"`
}

type sessionResponse struct {
	Access          string       `json:"access"`
	Refresh         string       `json:"refresh"`
	AccessExpiresAt string       `json:"access_expires_at"`
	User            *domain.User `json:"user"`
}

// withAction flattens payload into the single-endpoint session body.
func withAction(action string, payload interface{}) ([]byte, error) {
	body := map[string]interface{}{}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, err
		}
	}
	body["action"] = action
	return json.Marshal(body)
}

// parseAuthError reads the REST framework error shape: {"detail": "..."} or
// {"field": ["msg", ...]}.
func parseAuthError(status int, body []byte) *domain.AuthError {
	authErr := &domain.AuthError{Status: status, Payload: body}

	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return authErr
	}
	for key, value := range raw {
		var single string
		if err := json.Unmarshal(value, &single); err == nil {
			if key == "detail" {
				authErr.Detail = single
				continue
			}
			addFieldError(authErr, key, single)
			continue
		}
		var many []string
		if err := json.Unmarshal(value, &many); err == nil {
			for _, msg := range many {
				addFieldError(authErr, key, msg)
			}
		}
	}
	return authErr
}

func addFieldError(e *domain.AuthError, field, msg string) {
	if e.FieldErrors == nil {
		e.FieldErrors = map[string][]string{}
	}
	e.FieldErrors[field] = append(e.FieldErrors[field], msg)
}

func detailOf(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Detail
}

// accessExpiry prefers the server-provided instant and falls back to the
// exp claim of the access token itself.
func accessExpiry(resp sessionResponse) time.Time {
	if resp.AccessExpiresAt != "" {
		if at, err := time.Parse(time.RFC3339Nano, resp.AccessExpiresAt); err == nil {
			return at
		}
	}
	if resp.Access == "" {
		return time.Time{}
	}
	token, _, err := jwt.NewParser().ParseUnverified(resp.Access, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
