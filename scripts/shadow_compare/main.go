package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"
)

// target is one read-only action replayed against both deployments.
type target struct {
	Action   string                 `json:"action"`
	Params   map[string]interface{} `json:"params"`
	Critical bool                   `json:"critical"`
}

type targetFile struct {
	Targets []target `json:"targets"`
}

type comparison struct {
	Target         target
	LegacyStatus   int
	GoStatus       int
	StatusMatch    bool
	BodyMatch      bool
	Error          error
	DurationGo     time.Duration
	DurationLegacy time.Duration
}

type endpoint struct {
	base  string
	token string
}

func main() {
	var (
		goBase      string
		legacyBase  string
		targetsPath string
		goToken     string
		legacyToken string
		timeout     time.Duration
	)

	flag.StringVar(&goBase, "go-base", "http://localhost:8080/api/v1/actions", "Go action endpoint")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:54321/functions/v1/approve-application", "Legacy function endpoint")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "shadow_compare", "targets.json"), "Path to JSON targets file")
	flag.StringVar(&goToken, "go-token", os.Getenv("GO_ACTION_TOKEN"), "Bearer token for the Go endpoint")
	flag.StringVar(&legacyToken, "legacy-token", os.Getenv("LEGACY_ACTION_TOKEN"), "Bearer token for the legacy endpoint")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	goSide := endpoint{base: goBase, token: goToken}
	legacySide := endpoint{base: legacyBase, token: legacyToken}

	var (
		comparisons  []comparison
		breaking     int
		optionalDiff int
	)
	for _, t := range targets {
		comp := compareTarget(client, goSide, legacySide, t)
		switch {
		case comp.Error != nil:
			if t.Critical {
				breaking++
			}
		case !comp.StatusMatch || !comp.BodyMatch:
			if t.Critical {
				breaking++
			} else {
				optionalDiff++
			}
		}
		comparisons = append(comparisons, comp)
	}

	printReport(comparisons)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file targetFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	for i, t := range file.Targets {
		if strings.TrimSpace(t.Action) == "" {
			return nil, fmt.Errorf("target %d has no action", i)
		}
	}
	return file.Targets, nil
}

func compareTarget(client *http.Client, goSide, legacySide endpoint, tgt target) comparison {
	comp := comparison{Target: tgt}
	goStatus, goBody, goDur, goErr := performRequest(client, goSide, tgt)
	legacyStatus, legacyBody, legacyDur, legacyErr := performRequest(client, legacySide, tgt)
	comp.DurationGo = goDur
	comp.DurationLegacy = legacyDur

	if goErr != nil {
		comp.Error = fmt.Errorf("go request failed: %w", goErr)
		return comp
	}
	if legacyErr != nil {
		comp.Error = fmt.Errorf("legacy request failed: %w", legacyErr)
		return comp
	}

	comp.GoStatus = goStatus
	comp.LegacyStatus = legacyStatus
	comp.StatusMatch = goStatus == legacyStatus
	// Error bodies have different shapes, so only the status is compared.
	if goStatus >= http.StatusBadRequest || legacyStatus >= http.StatusBadRequest {
		comp.BodyMatch = comp.StatusMatch
		return comp
	}
	comp.BodyMatch = payloadsEqual(goPayload(goBody), legacyPayload(legacyBody))
	return comp
}

// actionURL encodes the action and its params the way the GET dispatcher
// expects them: strings raw, everything else as JSON.
func actionURL(base string, tgt target) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("action", tgt.Action)
	keys := make([]string, 0, len(tgt.Params))
	for key := range tgt.Params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		switch v := tgt.Params[key].(type) {
		case string:
			q.Set(key, v)
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("encode %s: %w", key, err)
			}
			q.Set(key, string(raw))
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func performRequest(client *http.Client, side endpoint, tgt target) (int, []byte, time.Duration, error) {
	if client == nil {
		return 0, nil, 0, errors.New("nil client")
	}
	endpointURL, err := actionURL(side.base, tgt)
	if err != nil {
		return 0, nil, 0, err
	}
	req, err := http.NewRequest(http.MethodGet, endpointURL, nil)
	if err != nil {
		return 0, nil, 0, err
	}
	if side.token != "" {
		req.Header.Set("Authorization", "Bearer "+side.token)
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, time.Since(start), nil
}

// goPayload unwraps {"data": {...}, "meta": {...}}.
func goPayload(body []byte) interface{} {
	var envelope struct {
		Data interface{} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}
	return envelope.Data
}

// legacyPayload drops the success flag and message the legacy function adds.
func legacyPayload(body []byte) interface{} {
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil
	}
	delete(doc, "success")
	delete(doc, "message")
	return doc
}

func payloadsEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return false
	}
	normalize(&a)
	normalize(&b)
	return reflect.DeepEqual(a, b)
}

func normalize(v *interface{}) {
	switch val := (*v).(type) {
	case map[string]interface{}:
		for k, v2 := range val {
			normalize(&v2)
			val[k] = v2
		}
	case []interface{}:
		for i, v2 := range val {
			normalize(&v2)
			val[i] = v2
		}
	case float64:
		if val == float64(int64(val)) {
			*v = int64(val)
		}
	}
}

func printReport(results []comparison) {
	fmt.Println("Action Parity Report")
	fmt.Println("====================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.StatusMatch || !res.BodyMatch {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s %v\n", status, res.Target.Action, res.Target.Params)
		fmt.Printf("  Go Status: %d (%s)\n", res.GoStatus, res.DurationGo)
		fmt.Printf("  Legacy Status: %d (%s)\n", res.LegacyStatus, res.DurationLegacy)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
		} else {
			fmt.Printf("  Status match: %t | Body match: %t | Critical: %t\n", res.StatusMatch, res.BodyMatch, res.Target.Critical)
		}
	}
}
