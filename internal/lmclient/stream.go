package lmclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

func readBody(resp *http.Response) string {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "could not read response body"
	}
	return string(b)
}

// readStream decodes newline-delimited JSON chat chunks, accumulating
// the running text and invoking onChunk synchronously after each one,
// matching the original's inline callback invocation.
func (c *Client) readStream(ctx context.Context, resp *http.Response, onChunk ChunkFunc) (string, error) {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var text strings.Builder
	for scanner.Scan() {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			continue
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("chat endpoint error: %s", chunk.Error)
		}

		text.WriteString(chunk.Message.Content)
		if onChunk != nil {
			onChunk(text.String())
		}

		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read chat stream: %w", err)
	}
	return text.String(), nil
}
