package protocol

import (
	"fmt"
	"io"
	"os"
)

// Kind names the response variant; it is also the header line on the wire.
type Kind string

const (
	KindText  Kind = "TEXT"
	KindError Kind = "ERROR"
	KindImage Kind = "IMAGE"
)

// ImageSource is a finite, exclusively owned byte stream whose length is known up front.
type ImageSource struct {
	Body io.ReadCloser
	Size int64
}

// Response is the outcome of one command. Build it with Text, Error or Image.
type Response struct {
	kind    Kind
	message string
	image   ImageSource
}

// Text builds a plain-text response.
func Text(message string) Response {
	return Response{kind: KindText, message: message}
}

// Error builds an error-text response.
func Error(message string) Response {
	return Response{kind: KindError, message: message}
}

// Image builds a binary image response that takes ownership of src.Body.
func Image(src ImageSource) Response {
	return Response{kind: KindImage, image: src}
}

// OpenImage opens path as an image source with its size taken from the file metadata.
func OpenImage(path string) (ImageSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImageSource{}, fmt.Errorf("open image: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return ImageSource{}, fmt.Errorf("stat image: %w", err)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return ImageSource{}, fmt.Errorf("image %q is not a regular file", path)
	}
	return ImageSource{Body: f, Size: info.Size()}, nil
}

func (r Response) Kind() Kind { return r.kind }

// Message returns the text of a TEXT or ERROR response.
func (r Response) Message() string { return r.message }

// ImageSource returns the stream of an IMAGE response.
func (r Response) ImageSource() ImageSource { return r.image }

// IsZero reports whether r was never built by a constructor.
func (r Response) IsZero() bool { return r.kind == "" }

// Close releases the image body, if any. It is safe on text responses.
func (r Response) Close() error {
	if r.kind != KindImage || r.image.Body == nil {
		return nil
	}
	return r.image.Body.Close()
}

func (r Response) String() string {
	if r.kind == KindImage {
		return fmt.Sprintf("%s(%d bytes)", r.kind, r.image.Size)
	}
	return fmt.Sprintf("%s(%q)", r.kind, r.message)
}
