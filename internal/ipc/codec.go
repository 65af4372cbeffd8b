package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// maxLine bounds one JSON message.
const maxLine = 64 << 10

func writeMessage(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

func readMessage(r io.Reader, v any) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLine)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return err
		}
		return io.ErrUnexpectedEOF
	}
	if err := json.Unmarshal(sc.Bytes(), v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
