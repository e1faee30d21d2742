package toolexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// interpolateVars replaces every `${VAR}` occurrence in s, checking
// secrets first and falling back to the process environment. An
// unresolved reference is left in place rather than blanked out.
func interpolateVars(s string, secrets Secrets) string {
	from := 0
	for {
		start := strings.Index(s[from:], "${")
		if start < 0 {
			return s
		}
		start += from
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			return s
		}
		end += start
		name := s[start+2 : end]

		var replacement string
		if secrets != nil {
			if v, ok := secrets.Lookup(name); ok {
				replacement = v
			}
		}
		if replacement == "" {
			if v, ok := os.LookupEnv(name); ok {
				replacement = v
			} else {
				replacement = s[start : end+1]
			}
		}
		s = s[:start] + replacement + s[end+1:]
		from = start + len(replacement)
	}
}

// resolveParam applies the resolution order for one parameter:
// a declared default always wins (with ${VAR} interpolation through it),
// otherwise the caller's value is coerced by type, otherwise a required
// parameter without a value is an error and an optional one is skipped.
func resolveParam(name string, def ParameterDef, callerValue string, hasCaller bool, secrets Secrets) (any, bool, error) {
	if len(def.Default) > 0 && string(def.Default) != "null" {
		var raw any
		if err := json.Unmarshal(def.Default, &raw); err != nil {
			return nil, false, fmt.Errorf("parameter %q: invalid default: %w", name, err)
		}
		if s, ok := raw.(string); ok && strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
			resolved := interpolateVars(s, secrets)
			return parseValueByType(resolved, def.Type), true, nil
		}
		return raw, true, nil
	}

	if hasCaller {
		return parseValueByType(callerValue, def.Type), true, nil
	}

	if def.Required {
		return nil, false, fmt.Errorf("missing required parameter: %s", name)
	}
	return nil, false, nil
}

func isPathParam(name string, pathParams []string) bool {
	for _, p := range pathParams {
		if p == name {
			return true
		}
	}
	return false
}

func substitutePathParams(endpoint string, values map[string]string) string {
	for name, value := range values {
		endpoint = strings.ReplaceAll(endpoint, "{"+name+"}", value)
		endpoint = strings.ReplaceAll(endpoint, ":"+name, value)
	}
	return endpoint
}

func (e *Executor) executeHTTPTool(ctx context.Context, toolName string, params map[string]string) (any, error) {
	var tool *HTTPTool
	for i := range e.config.HTTP {
		if e.config.HTTP[i].Name == toolName {
			tool = &e.config.HTTP[i]
			break
		}
	}
	if tool == nil {
		return nil, fmt.Errorf("HTTP tool %q not found", toolName)
	}

	pathValues := map[string]string{}
	bodyValues := map[string]any{}

	for name, def := range tool.Parameters {
		callerValue, hasCaller := params[name]
		value, present, err := resolveParam(name, def, callerValue, hasCaller, e.secrets)
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		if isPathParam(name, tool.PathParams) {
			pathValues[name] = stringifyScalar(value)
		} else {
			bodyValues[name] = value
		}
	}

	endpoint := substitutePathParams(tool.Endpoint, pathValues)

	method := strings.ToUpper(tool.Method)
	var req *http.Request
	var err error

	if method == http.MethodGet {
		u, perr := url.Parse(endpoint)
		if perr != nil {
			return nil, fmt.Errorf("parse endpoint: %w", perr)
		}
		q := u.Query()
		for k, v := range bodyValues {
			q.Set(k, stringifyScalar(v))
		}
		u.RawQuery = q.Encode()
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
	} else {
		payload, merr := json.Marshal(bodyValues)
		if merr != nil {
			return nil, fmt.Errorf("marshal request body: %w", merr)
		}
		req, err = http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	for name, value := range tool.Headers {
		req.Header.Set(name, interpolateVars(value, e.secrets))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request for tool %q: %w", toolName, err)
	}
	defer resp.Body.Close()

	status := resp.StatusCode

	if statusInList(status, tool.AcceptableStatus) {
		return map[string]any{"status": "ignored", "status_code": status}, nil
	}

	isExpected := statusInList(status, tool.expectedStatus())
	shouldError := !isExpected
	if len(tool.ErrorStatus) > 0 {
		shouldError = statusInList(status, tool.ErrorStatus)
	}

	body, readErr := io.ReadAll(resp.Body)
	if shouldError {
		bodyText := string(body)
		if readErr != nil {
			bodyText = "could not read error response"
		}
		e.logger.Error("HTTP tool error response", "tool", toolName, "status", status, "body", bodyText)
		return nil, fmt.Errorf("HTTP %d error for tool %q: %s", status, toolName, bodyText)
	}
	if readErr != nil {
		return nil, fmt.Errorf("read response body: %w", readErr)
	}

	if len(body) == 0 {
		return map[string]any{"status_code": status}, nil
	}

	decoded, err := decodeJSONAny(body)
	if err != nil {
		return string(body), nil
	}

	if tool.ResponsePath == "" {
		return decoded, nil
	}
	return extractJSONPath(decoded, tool.ResponsePath)
}
