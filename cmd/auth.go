package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotback/internal/server"
	"github.com/desertthunder/spotback/internal/services"
	"github.com/desertthunder/spotback/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const (
	defaultAuthTimeout = 2 * time.Minute
	shutdownTimeout    = 5 * time.Second
)

// Auth runs the authorization code flow and stores the resulting tokens in the config file.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.service()
	if err != nil {
		return err
	}

	if err := r.authenticate(ctx, svc, true); err != nil {
		return err
	}
	r.catalog = svc

	user, err := svc.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify token: %w", err)
	}

	r.logger.Info("authenticated", "user", user.ID, "config", r.configPath)
	r.writePlain("✓ Authenticated as %s\n", user.ID)
	r.writePlain("  Tokens saved to %s\n", r.configPath)
	return nil
}

// connect returns a ready catalog, authenticating with stored tokens or the browser flow as needed.
func (r *Runner) connect(ctx context.Context) (services.Catalog, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}

	svc, err := r.service()
	if err != nil {
		return nil, err
	}
	if err := r.authenticate(ctx, svc, false); err != nil {
		return nil, err
	}

	r.catalog = svc
	return svc, nil
}

// service builds the Spotify client from the configured credentials.
func (r *Runner) service() (*services.SpotifyService, error) {
	if err := r.config.Validate(); err != nil {
		return nil, fmt.Errorf("%w (run `spotback init` and fill in %s)", err, r.configPath)
	}

	svc, err := services.NewSpotifyService(r.config.Credentials.Spotify)
	if err != nil {
		return nil, err
	}
	svc.SetTokenRefreshCallback(r.saveToken)
	r.oauth = svc
	return svc, nil
}

// authenticate installs a token on svc. The browser flow runs when force is set or no token is stored.
func (r *Runner) authenticate(ctx context.Context, svc services.OAuthService, force bool) error {
	username := r.config.Credentials.Spotify.Username
	token := r.config.Credentials.Spotify.Token()

	if force || token == nil {
		var err error
		if token, err = r.doOAuth(ctx, svc); err != nil {
			r.logger.Error("can't get token for "+username, "error", err)
			if errors.Is(err, shared.ErrAuthFailed) {
				return err
			}
			return fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
		}
		r.saveToken(token)
	}

	if err := svc.Authenticate(ctx, token); err != nil {
		r.logger.Error("can't get token for "+username, "error", err)
		return fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	return nil
}

// reauthorize repeats the browser flow after the stored token was rejected.
// It reports false when the catalog cannot be reauthorized, e.g. an injected test double.
func (r *Runner) reauthorize(ctx context.Context, cause error) (bool, error) {
	if !errors.Is(cause, shared.ErrTokenExpired) || r.oauth == nil {
		return false, nil
	}

	r.writePlainln("⚠ Authentication token expired. Starting reauthorization...")
	if err := r.authenticate(ctx, r.oauth, true); err != nil {
		return true, fmt.Errorf("reauthorization failed: %w", err)
	}

	r.writePlainln("✓ Successfully reauthenticated. Retrying operation...")
	return true, nil
}

// saveToken copies token into the config and persists it. Failures are logged, not returned,
// since it also runs from the client's refresh path.
func (r *Runner) saveToken(token *oauth2.Token) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		r.logger.Warn("failed to update token", "error", err)
		return
	}
	if err := shared.SaveToken(r.configPath, token); err != nil {
		r.logger.Warn("failed to save tokens", "path", r.configPath, "error", err)
		return
	}
	r.logger.Debug("tokens saved", "path", r.configPath, "expiry", token.Expiry)
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, svc services.OAuthService) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	handler := server.NewOAuthHandler(svc.OAuthConfig(), state)
	router := server.NewCallbackRouter(handler, server.Logging(r.logger))

	host, port := r.config.Server.Host, r.config.Server.Port
	srv, err := server.Listen(host, port, router)
	if err != nil {
		return nil, err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()
	r.logger.Infof("starting OAuth server for %s at %v", svc.Name(), srv.Addr())

	authURL := svc.AuthURL(state)
	r.writePlain("→ Opening browser for %s authorization...\n", svc.Name())
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	timeout := r.config.Server.Timeout.Duration
	if timeout <= 0 {
		timeout = defaultAuthTimeout
	}
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	token, err := handler.Wait(waitCtx)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return token, nil
}
