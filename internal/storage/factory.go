// Package storage builds the configured object store.
package storage

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"montage/internal/adapters/storage/gdrive"
	"montage/internal/adapters/storage/localfs"
	"montage/internal/config"
	"montage/internal/ports"
)

// Provider is the storage contract used by the gateway and the workers.
type Provider = ports.StorageProvider

// NewProvider returns the provider named in cfg, or nil when storage is
// disabled ("none").
func NewProvider(ctx context.Context, cfg config.Storage) (Provider, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "localfs":
		if cfg.LocalRoot == "" {
			return nil, fmt.Errorf("localfs provider requires a root directory")
		}
		return localfs.New(cfg.LocalRoot), nil
	case "gdrive":
		return newGDriveProvider(ctx, cfg.GDrive)
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}

// OAuthConfig is the Drive client configuration shared with the
// gdrive-auth helper.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       []string{drive.DriveFileScope},
	}
}

func newGDriveProvider(ctx context.Context, g config.GDrive) (Provider, error) {
	if g.ClientID == "" || g.ClientSecret == "" || g.RefreshToken == "" {
		return nil, fmt.Errorf("gdrive provider requires client id, client secret and refresh token")
	}

	conf := OAuthConfig(g.ClientID, g.ClientSecret, "")
	tok := &oauth2.Token{RefreshToken: g.RefreshToken}
	httpClient := conf.Client(context.WithoutCancel(ctx), tok)

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	return gdrive.NewClient(srv, g.FolderID), nil
}
