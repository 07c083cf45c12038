package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	// ChunkSize is the copy buffer used when streaming image payloads.
	ChunkSize = 4096
	// MaxCommandLength bounds one request line, delimiter included.
	MaxCommandLength = 4096
)

var (
	ErrShortImage      = errors.New("image stream ended before declared length")
	ErrCommandTooLong  = errors.New("command line exceeds maximum length")
	ErrUnknownKind     = errors.New("unknown response type")
	ErrInvalidLength   = errors.New("invalid payload length")
	ErrResponseUnbuilt = errors.New("response has no variant")
)

// Frame describes one framed response. Payload is only populated by ReadResponse.
type Frame struct {
	Kind    Kind
	Length  int64
	Digest  uint64
	Payload []byte
}

// WriteResponse writes resp as TYPE, BYTE_LENGTH and exactly BYTE_LENGTH payload bytes.
// It does not close the image body; callers own that.
func WriteResponse(w io.Writer, resp Response) (Frame, error) {
	switch resp.Kind() {
	case KindText, KindError:
		payload := []byte(resp.Message())
		if err := writeHeader(w, resp.Kind(), int64(len(payload))); err != nil {
			return Frame{}, err
		}
		if _, err := w.Write(payload); err != nil {
			return Frame{}, fmt.Errorf("write payload: %w", err)
		}
		return Frame{Kind: resp.Kind(), Length: int64(len(payload)), Digest: xxhash.Sum64(payload)}, nil
	case KindImage:
		return writeImage(w, resp.ImageSource())
	case "":
		return Frame{}, ErrResponseUnbuilt
	default:
		return Frame{}, fmt.Errorf("%w: %q", ErrUnknownKind, resp.Kind())
	}
}

func writeImage(w io.Writer, src ImageSource) (Frame, error) {
	if src.Body == nil {
		return Frame{}, errors.New("image response has no body")
	}
	if src.Size < 0 {
		return Frame{}, fmt.Errorf("%w: %d", ErrInvalidLength, src.Size)
	}
	if err := writeHeader(w, KindImage, src.Size); err != nil {
		return Frame{}, err
	}

	digest := xxhash.New()
	buf := make([]byte, ChunkSize)
	n, err := io.CopyBuffer(io.MultiWriter(w, digest), io.LimitReader(src.Body, src.Size), buf)
	if err != nil {
		return Frame{}, fmt.Errorf("stream image: %w", err)
	}
	if n != src.Size {
		return Frame{}, fmt.Errorf("%w: sent %d of %d bytes", ErrShortImage, n, src.Size)
	}
	return Frame{Kind: KindImage, Length: n, Digest: digest.Sum64()}, nil
}

func writeHeader(w io.Writer, kind Kind, length int64) error {
	buf := make([]byte, 0, len(kind)+24)
	buf = append(buf, kind...)
	buf = append(buf, '\n')
	buf = strconv.AppendInt(buf, length, 10)
	buf = append(buf, '\n')
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// ReadResponse decodes one framed response, reading exactly the declared payload length.
func ReadResponse(r *bufio.Reader) (Frame, error) {
	header, err := readLine(r)
	if err != nil {
		return Frame{}, fmt.Errorf("read type: %w", err)
	}
	kind := Kind(strings.TrimSpace(header))
	switch kind {
	case KindText, KindError, KindImage:
	default:
		return Frame{}, fmt.Errorf("%w: %q", ErrUnknownKind, header)
	}

	lengthLine, err := readLine(r)
	if err != nil {
		return Frame{}, fmt.Errorf("read length: %w", err)
	}
	length, err := strconv.ParseInt(strings.TrimSpace(lengthLine), 10, 64)
	if err != nil || length < 0 {
		return Frame{}, fmt.Errorf("%w: %q", ErrInvalidLength, lengthLine)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, fmt.Errorf("read payload: %w", err)
	}
	return Frame{Kind: kind, Length: length, Digest: xxhash.Sum64(payload), Payload: payload}, nil
}

// ReadCommand reads one request line without its delimiter. A final line without a
// delimiter is accepted; io.EOF is returned only when no byte was received.
func ReadCommand(r *bufio.Reader) (string, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > MaxCommandLength {
			return "", ErrCommandTooLong
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && len(line) > 0 {
			break
		}
		return "", err
	}

	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return string(line), nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"), nil
}
