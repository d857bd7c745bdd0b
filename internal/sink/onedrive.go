// internal/sink/onedrive.go
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/oauth2"

	"github.com/manu4linux/archivedir/internal/core"
)

const (
	graphBaseURL = "https://graph.microsoft.com/v1.0/me/drive"

	// Graph requires upload session chunks in multiples of 320 KiB.
	// 100 fragments per PUT keeps requests around 32 MiB.
	uploadChunkSize = 320 * 1024 * 100

	// Above this size uploads go through an upload session instead of
	// a single PUT (Graph's simple upload limit is 4 MiB).
	simpleUploadLimit = 4 * 1024 * 1024
)

// OneDriveConfig holds OneDrive OAuth credentials and the target
// folder path.
type OneDriveConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TenantID     string
	BaseURL      string // override for tests, defaults to the Graph endpoint
	FolderPath   string
}

// OneDrive implements Sink for a OneDrive folder through the
// Microsoft Graph API.
type OneDrive struct {
	client  *http.Client
	baseURL string
	folder  string
}

// NewOneDrive creates a OneDrive sink.
func NewOneDrive(ctx context.Context, cfg OneDriveConfig) (*OneDrive, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("onedrive credentials are not configured"))
	}

	tenant := cfg.TenantID
	if tenant == "" {
		tenant = "common"
	}
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenant),
		},
	}
	client := oc.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = graphBaseURL
	}
	return &OneDrive{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		folder:  strings.Trim(cfg.FolderPath, "/"),
	}, nil
}

// itemURL builds the item-by-path URL for an object, with an optional
// trailing segment like "content" or "createUploadSession".
func (o *OneDrive) itemURL(name, action string) string {
	path := name
	if o.folder != "" {
		path = o.folder + "/" + name
	}
	u := o.baseURL + "/root:/" + escapePath(path)
	if action == "" {
		return u
	}
	return u + ":/" + action
}

// escapePath escapes each path segment, keeping the separators.
func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func (o *OneDrive) doJSON(ctx context.Context, method, rawURL string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return core.WrapError(core.ErrSinkTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode,
			fmt.Errorf("%s %s: %s", method, rawURL, resp.Status))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// Store implements Sink. Large objects go through an upload session
// in 320 KiB aligned chunks; small ones use a single content PUT.
func (o *OneDrive) Store(ctx context.Context, name string, r io.Reader, size int64) error {
	if size >= 0 && size <= simpleUploadLimit {
		return o.storeSimple(ctx, name, r, size)
	}
	return o.storeSession(ctx, name, r, size)
}

func (o *OneDrive) storeSimple(ctx context.Context, name string, r io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, o.itemURL(name, "content"), r)
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := o.client.Do(req)
	if err != nil {
		return core.WrapError(core.ErrSinkTransient, fmt.Errorf("uploading %s: %w", name, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode, fmt.Errorf("uploading %s: %s", name, resp.Status))
	}
	return nil
}

func (o *OneDrive) storeSession(ctx context.Context, name string, r io.Reader, size int64) error {
	sessionBody, _ := json.Marshal(map[string]any{
		"item": map[string]string{"@microsoft.graph.conflictBehavior": "replace"},
	})
	var session struct {
		UploadURL string `json:"uploadUrl"`
	}
	err := o.doJSON(ctx, http.MethodPost, o.itemURL(name, "createUploadSession"),
		bytes.NewReader(sessionBody), &session)
	if err != nil {
		return fmt.Errorf("creating upload session for %s: %w", name, err)
	}

	buf := make([]byte, uploadChunkSize)
	var offset int64
	for {
		n, rerr := io.ReadFull(r, buf)
		if rerr == io.EOF {
			break
		}
		if rerr != nil && rerr != io.ErrUnexpectedEOF {
			return core.WrapError(core.ErrPartIO, fmt.Errorf("reading %s: %w", name, rerr))
		}

		if err := o.putChunk(ctx, session.UploadURL, buf[:n], offset, size); err != nil {
			return fmt.Errorf("uploading %s at offset %d: %w", name, offset, err)
		}
		offset += int64(n)

		if rerr == io.ErrUnexpectedEOF {
			break
		}
	}
	return nil
}

func (o *OneDrive) putChunk(ctx context.Context, uploadURL string, chunk []byte, offset, total int64) error {
	if total < 0 {
		total = offset + int64(len(chunk))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(chunk))
	if err != nil {
		return err
	}
	req.ContentLength = int64(len(chunk))
	req.Header.Set("Content-Range",
		fmt.Sprintf("bytes %d-%d/%d", offset, offset+int64(len(chunk))-1, total))

	resp, err := o.client.Do(req)
	if err != nil {
		return core.WrapError(core.ErrSinkTransient, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode, fmt.Errorf("chunk upload: %s", resp.Status))
	}
	return nil
}

// Open implements Sink.
func (o *OneDrive) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.itemURL(name, "content"), nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrSinkTransient, fmt.Errorf("downloading %s: %w", name, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, classifyStatus(resp.StatusCode, fmt.Errorf("downloading %s: %s", name, resp.Status))
	}
	return resp.Body, nil
}

// List implements Sink.
func (o *OneDrive) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string

	next := o.childrenURL()
	for next != "" {
		var page struct {
			Value []struct {
				Name string `json:"name"`
			} `json:"value"`
			NextLink string `json:"@odata.nextLink"`
		}
		if err := o.doJSON(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, fmt.Errorf("listing %s: %w", prefix, err)
		}
		for _, item := range page.Value {
			if strings.HasPrefix(item.Name, prefix) {
				names = append(names, item.Name)
			}
		}
		next = page.NextLink
	}

	sort.Strings(names)
	return names, nil
}

func (o *OneDrive) childrenURL() string {
	if o.folder == "" {
		return o.baseURL + "/root/children"
	}
	return o.baseURL + "/root:/" + escapePath(o.folder) + ":/children"
}

// Delete implements Sink.
func (o *OneDrive) Delete(ctx context.Context, name string) error {
	if err := o.doJSON(ctx, http.MethodDelete, o.itemURL(name, ""), nil, nil); err != nil {
		return fmt.Errorf("deleting %s: %w", name, err)
	}
	return nil
}

// Exists implements Sink.
func (o *OneDrive) Exists(ctx context.Context, name string) (bool, error) {
	err := o.doJSON(ctx, http.MethodGet, o.itemURL(name, ""), nil, nil)
	if err == nil {
		return true, nil
	}
	if strings.Contains(err.Error(), "404") {
		return false, nil
	}
	return false, err
}
