package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"runtime"
)

// transferChunkSize is the amount of data read from the source per step of
// a transfer.
const transferChunkSize = 4096

var crlf = []byte("\r\n")

// localEOL returns the line terminator of the host platform.
func localEOL() []byte {
	if runtime.GOOS == "windows" {
		return []byte("\r\n")
	}
	return []byte("\n")
}

// copyData copies src to dst until EOF. When from is non-empty and differs
// from to, every occurrence of from is replaced by to.
//
// ASCII downloads use from=localEOL, to=CRLF; uploads the reverse. Binary
// transfers pass a nil from and copy the stream unchanged.
func copyData(ctx context.Context, dst io.Writer, src io.Reader, from, to []byte) (int64, error) {
	return transcode(ctx, dst, src, from, to, transferChunkSize)
}

func transcode(ctx context.Context, dst io.Writer, src io.Reader, from, to []byte, chunkSize int) (int64, error) {
	convert := len(from) > 0 && !bytes.Equal(from, to)

	// buf holds at most len(from)-1 carried bytes followed by one read.
	buf := make([]byte, chunkSize+len(from))
	var out []byte
	if convert {
		// Each byte of input can expand to at most len(to) bytes.
		out = make([]byte, 0, len(buf)*max(len(to), 1))
	}

	var written int64
	pending := 0
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, rerr := src.Read(buf[pending : pending+chunkSize])
		chunk := buf[:pending+n]

		data := chunk
		pending = 0
		if convert {
			// A terminator may straddle two reads: its leading bytes are held
			// back and converted together with the next read.
			out, pending = convertChunk(out[:0], chunk, from, to, rerr != nil)
			data = out
		}

		if len(data) > 0 {
			nw, werr := dst.Write(data)
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nw != len(data) {
				return written, io.ErrShortWrite
			}
		}
		if pending > 0 {
			copy(buf, chunk[len(chunk)-pending:])
		}

		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return written, nil
			}
			return written, rerr
		}
	}
}

// convertChunk appends src to dst with every occurrence of from replaced by
// to. Unless final is set, a trailing partial occurrence of from is left out
// and its length returned.
func convertChunk(dst, src, from, to []byte, final bool) ([]byte, int) {
	for {
		i := bytes.Index(src, from)
		if i < 0 {
			break
		}
		dst = append(dst, src[:i]...)
		dst = append(dst, to...)
		src = src[i+len(from):]
	}
	keep := 0
	if !final {
		keep = partialSuffix(src, from)
	}
	return append(dst, src[:len(src)-keep]...), keep
}

// partialSuffix returns the length of the longest proper prefix of term
// that b ends with.
func partialSuffix(b, term []byte) int {
	for k := min(len(term)-1, len(b)); k > 0; k-- {
		if bytes.HasSuffix(b, term[:k]) {
			return k
		}
	}
	return 0
}
