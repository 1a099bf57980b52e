// Command smoke probes a running deployment and verifies that key
// endpoints answer with their expected status codes. It logs in first
// when credentials are supplied so scoped routes can be exercised.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Expect   int    `json:"expect"`
	Auth     bool   `json:"auth"`
	Critical bool   `json:"critical"`
}

type targetsFile struct {
	Targets []target `json:"targets"`
}

type probe struct {
	Target   target
	Status   int
	Match    bool
	Error    error
	Duration time.Duration
}

func main() {
	var (
		base        string
		targetsPath string
		username    string
		password    string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "smoke", "targets.json"), "Path to JSON targets file")
	flag.StringVar(&username, "username", "", "Account for authenticated probes")
	flag.StringVar(&password, "password", "", "Password for authenticated probes")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}

	token := ""
	if username != "" {
		token, err = login(client, base, username, password)
		if err != nil {
			log.Fatalf("login failed: %v", err)
		}
	}

	var (
		probes   []probe
		breaking int
		soft     int
	)
	for _, t := range targets {
		p := runProbe(client, base, token, t)
		if p.Error != nil || !p.Match {
			if t.Critical {
				breaking++
			} else {
				soft++
			}
		}
		probes = append(probes, p)
	}

	printReport(probes)
	fmt.Printf("Critical failures: %d, Soft failures: %d\n", breaking, soft)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f targetsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if len(f.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return f.Targets, nil
}

// login performs the two-step captcha flow and exchanges credentials
// for an access token.
func login(client *http.Client, base, username, password string) (string, error) {
	capResp, err := client.Get(strings.TrimRight(base, "/") + "/api/v1/auth/captcha")
	if err != nil {
		return "", fmt.Errorf("fetch captcha: %w", err)
	}
	defer capResp.Body.Close()

	var capEnvelope struct {
		Data struct {
			Key  string `json:"captcha_key"`
			Code string `json:"captcha_text"`
		} `json:"data"`
	}
	if err := json.NewDecoder(capResp.Body).Decode(&capEnvelope); err != nil {
		return "", fmt.Errorf("decode captcha: %w", err)
	}
	if capEnvelope.Data.Code == "" {
		return "", fmt.Errorf("captcha endpoint answered without a code")
	}

	payload, err := json.Marshal(map[string]string{
		"username":    username,
		"password":    password,
		"captcha":     capEnvelope.Data.Code,
		"captcha_key": capEnvelope.Data.Key,
	})
	if err != nil {
		return "", err
	}
	resp, err := client.Post(strings.TrimRight(base, "/")+"/api/v1/auth/login", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var loginEnvelope struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginEnvelope); err != nil {
		return "", fmt.Errorf("decode login: %w", err)
	}
	if loginEnvelope.Data.AccessToken == "" {
		return "", fmt.Errorf("login answered without a token")
	}
	return loginEnvelope.Data.AccessToken, nil
}

func runProbe(client *http.Client, base, token string, tgt target) probe {
	p := probe{Target: tgt}

	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		p.Error = err
		return p
	}
	if tgt.Auth {
		if token == "" {
			p.Error = fmt.Errorf("target needs auth but no credentials were given")
			return p
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	p.Duration = time.Since(start)
	if err != nil {
		p.Error = err
		return p
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	p.Status = resp.StatusCode
	expect := tgt.Expect
	if expect == 0 {
		expect = http.StatusOK
	}
	p.Match = p.Status == expect
	return p
}

func printReport(probes []probe) {
	fmt.Println("Smoke Report")
	fmt.Println("============")
	for _, p := range probes {
		status := "OK"
		if p.Error != nil {
			status = "ERROR"
		} else if !p.Match {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s %s\n", status, p.Target.Method, p.Target.Path)
		if p.Error != nil {
			fmt.Printf("  Error: %v\n", p.Error)
			continue
		}
		fmt.Printf("  Status: %d (%s) | Critical: %t\n", p.Status, p.Duration, p.Target.Critical)
	}
}
