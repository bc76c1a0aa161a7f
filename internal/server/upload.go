package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	errNoUpload  = errors.New("upload field is missing")
	errMalformed = errors.New("malformed multipart body")
)

// safeExt matches the extensions kept from client file names.
var safeExt = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// saveUpload streams the multipart part named field into dir under a random
// name and returns its path and size. Only the client file name's extension
// is kept. On error nothing is left behind.
func saveUpload(r *http.Request, dir, field string) (string, int64, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", errMalformed, err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", 0, fmt.Errorf("%w: %q", errNoUpload, field)
		}
		if err != nil {
			return "", 0, fmt.Errorf("%w: %w", errMalformed, err)
		}
		if part.FormName() != field {
			_ = part.Close()
			continue
		}
		path, n, err := writePart(part, dir, uploadName(part.FileName()))
		_ = part.Close()
		return path, n, err
	}
}

func writePart(src io.Reader, dir, name string) (string, int64, error) {
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, err
	}
	return path, n, nil
}

// uploadName returns a fresh UUID file name carrying clientName's extension
// when it looks harmless.
func uploadName(clientName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(clientName)))
	if !safeExt.MatchString(ext) {
		ext = ""
	}
	return uuid.NewString() + ext
}
