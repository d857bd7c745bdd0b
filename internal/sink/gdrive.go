// internal/sink/gdrive.go
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/manu4linux/archivedir/internal/core"
)

const folderMimeType = "application/vnd.google-apps.folder"

// GDriveConfig holds Google Drive OAuth credentials and the target
// folder path.
type GDriveConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string // override for tests, defaults to Google's endpoint
	FolderPath   string
}

// GDrive implements Sink for a Google Drive folder. The folder path
// is resolved (and created) once at construction; objects live as
// files directly under it.
type GDrive struct {
	svc      *drive.Service
	folderID string
}

// NewGDrive creates a Drive sink, resolving cfg.FolderPath from the
// Drive root and creating missing folders along the way.
func NewGDrive(ctx context.Context, cfg GDriveConfig) (*GDrive, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("google drive credentials are not configured"))
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = "https://oauth2.googleapis.com/token"
	}
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
	}
	client := oc.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	svc, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, core.WrapError(core.ErrSinkPermanent,
			fmt.Errorf("creating drive service: %w", err))
	}

	g := &GDrive{svc: svc}
	g.folderID, err = g.resolveFolder(ctx, cfg.FolderPath)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// resolveFolder walks the folder path from the Drive root, creating
// each missing segment.
func (g *GDrive) resolveFolder(ctx context.Context, path string) (string, error) {
	parent := "root"
	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			continue
		}
		query := fmt.Sprintf(
			"name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
			escapeQuery(segment), parent, folderMimeType)
		list, err := g.svc.Files.List().Q(query).Fields("files(id)").Context(ctx).Do()
		if err != nil {
			return "", g.classify(fmt.Errorf("resolving folder %s: %w", segment, err))
		}
		if len(list.Files) > 0 {
			parent = list.Files[0].Id
			continue
		}
		created, err := g.svc.Files.Create(&drive.File{
			Name:     segment,
			MimeType: folderMimeType,
			Parents:  []string{parent},
		}).Fields("id").Context(ctx).Do()
		if err != nil {
			return "", g.classify(fmt.Errorf("creating folder %s: %w", segment, err))
		}
		parent = created.Id
	}
	return parent, nil
}

// findFile returns the ID of a file by name within the sink folder,
// or "" when absent.
func (g *GDrive) findFile(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false",
		escapeQuery(name), g.folderID)
	list, err := g.svc.Files.List().Q(query).Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return "", g.classify(fmt.Errorf("finding %s: %w", name, err))
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

// Store implements Sink. An existing file of the same name is
// replaced so retried uploads do not accumulate duplicates.
func (g *GDrive) Store(ctx context.Context, name string, r io.Reader, size int64) error {
	existing, err := g.findFile(ctx, name)
	if err != nil {
		return err
	}
	if existing != "" {
		if err := g.svc.Files.Delete(existing).Context(ctx).Do(); err != nil {
			return g.classify(fmt.Errorf("replacing %s: %w", name, err))
		}
	}

	_, err = g.svc.Files.Create(&drive.File{
		Name:    name,
		Parents: []string{g.folderID},
	}).Media(r, googleapi.ChunkSize(googleapi.DefaultUploadChunkSize)).Context(ctx).Do()
	if err != nil {
		return g.classify(fmt.Errorf("uploading %s: %w", name, err))
	}
	return nil
}

// Open implements Sink.
func (g *GDrive) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	id, err := g.findFile(ctx, name)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, core.WrapError(core.ErrSinkPermanent,
			fmt.Errorf("object %s not found", name))
	}
	resp, err := g.svc.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return nil, g.classify(fmt.Errorf("downloading %s: %w", name, err))
	}
	return resp.Body, nil
}

// List implements Sink.
func (g *GDrive) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	query := fmt.Sprintf("'%s' in parents and trashed = false", g.folderID)
	call := g.svc.Files.List().Q(query).Fields("nextPageToken, files(name)").PageSize(1000)

	for {
		list, err := call.Context(ctx).Do()
		if err != nil {
			return nil, g.classify(fmt.Errorf("listing %s: %w", prefix, err))
		}
		for _, f := range list.Files {
			if strings.HasPrefix(f.Name, prefix) {
				names = append(names, f.Name)
			}
		}
		if list.NextPageToken == "" {
			break
		}
		call = call.PageToken(list.NextPageToken)
	}

	sort.Strings(names)
	return names, nil
}

// Delete implements Sink.
func (g *GDrive) Delete(ctx context.Context, name string) error {
	id, err := g.findFile(ctx, name)
	if err != nil {
		return err
	}
	if id == "" {
		return nil
	}
	if err := g.svc.Files.Delete(id).Context(ctx).Do(); err != nil {
		return g.classify(fmt.Errorf("deleting %s: %w", name, err))
	}
	return nil
}

// Exists implements Sink.
func (g *GDrive) Exists(ctx context.Context, name string) (bool, error) {
	id, err := g.findFile(ctx, name)
	if err != nil {
		return false, err
	}
	return id != "", nil
}

// classify maps Drive API errors onto the transient/permanent split.
func (g *GDrive) classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, err)
	}
	return classify(err)
}

// escapeQuery escapes single quotes and backslashes for Drive query
// strings.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
