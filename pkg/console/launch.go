package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/QSchlegel/OrchWiz-sub000/pkg/api/client"
)

// NoticeLevel classifies an inline notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a dismissable inline message shown above the wizard.
type Notice struct {
	Level             NoticeLevel
	Text              string
	Code              string
	SuggestedCommands []string
}

// Console ties the wizard, the fleet view and launch submission together.
type Console struct {
	api   API
	token string

	Wizard *Wizard
	Fleet  *FleetView

	mu      sync.Mutex
	notices []Notice
}

// New builds a console bound to an authenticated API session.
func New(api API, token string, placeholder Placeholders) *Console {
	return &Console{
		api:    api,
		token:  token,
		Wizard: NewWizard(placeholder),
		Fleet:  NewFleetView(api, token),
	}
}

// Notices returns the pending inline messages.
func (c *Console) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notice(nil), c.notices...)
}

// DismissNotices clears all pending messages.
func (c *Console) DismissNotices() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = nil
}

func (c *Console) pushNotice(n Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, n)
}

// SubmitLaunch serializes the wizard form into one launch request. On
// success the wizard resets to the mission step, the new deployment becomes
// the selected ship and the fleet is refreshed. On error the wizard stays
// where it is and the server message becomes an inline notice.
func (c *Console) SubmitLaunch(ctx context.Context) (client.LaunchResponse, error) {
	form := c.Wizard.Form()

	// Secrets are stored against the profile before the launch so the
	// control plane can inject them during bootstrap.
	if len(form.Secrets) > 0 {
		if err := c.api.PutSecrets(ctx, c.token, form.Profile, form.Secrets); err != nil {
			c.pushNotice(noticeFromError(err))
			return client.LaunchResponse{}, err
		}
	}

	resp, err := c.api.Launch(ctx, c.token, c.Wizard.LaunchInput())
	if err != nil {
		c.pushNotice(noticeFromError(err))
		return client.LaunchResponse{}, err
	}

	if resp.Deployment.ID != "" {
		c.Fleet.SelectShip(resp.Deployment.ID)
	}
	if len(resp.Warnings) > 0 {
		c.pushNotice(Notice{
			Level: NoticeInfo,
			Text:  fmt.Sprintf("ship %s launched with pending bootstrap steps: %s", resp.Deployment.Name, strings.Join(resp.Warnings, "; ")),
		})
	} else {
		c.pushNotice(Notice{
			Level: NoticeSuccess,
			Text:  fmt.Sprintf("ship %s is launching", resp.Deployment.Name),
		})
	}
	c.Wizard.Reset()
	c.Fleet.Refresh(ctx)
	return resp, nil
}

func noticeFromError(err error) Notice {
	var apiErr client.APIError
	if errors.As(err, &apiErr) {
		return Notice{
			Level:             NoticeError,
			Text:              apiErr.Message,
			Code:              apiErr.Code,
			SuggestedCommands: apiErr.SuggestedCommands,
		}
	}
	return Notice{Level: NoticeError, Text: err.Error()}
}
