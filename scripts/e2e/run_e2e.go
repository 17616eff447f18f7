// Package main runs end-to-end scenarios against a running patient portal.
//
// Scenarios cover:
//   - Login with valid and invalid credentials
//   - Dashboard and catalog loading
//   - Scheduling a consultation and seeing it listed
//   - The two-step cancellation flow
//   - Live notifications over the websocket stream
//
// Usage:
//
//	API_BASE_URL=http://localhost:8080 go run scripts/e2e/run_e2e.go            # runs all
//	API_BASE_URL=http://localhost:8080 go run scripts/e2e/run_e2e.go schedule   # runs one
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	cardNumber = "12345678901"
	pin        = "1234"
)

var apiBase string

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...interface{}) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func do(method, path, token string, payload interface{}) (int, map[string]interface{}, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, apiBase+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	var result map[string]interface{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &result)
	}
	return resp.StatusCode, result, nil
}

func login() (string, error) {
	status, body, err := do(http.MethodPost, "/auth/login", "", map[string]string{
		"card_number": cardNumber,
		"pin":         pin,
	})
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("login returned %d", status)
	}
	token, _ := body["token"].(string)
	if token == "" {
		return "", fmt.Errorf("login returned no token")
	}
	return token, nil
}

func list(body map[string]interface{}, key string) []map[string]interface{} {
	raw, ok := body[key].([]interface{})
	if !ok {
		return nil
	}
	var out []map[string]interface{}
	for _, item := range raw {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func notificationMessage(body map[string]interface{}) string {
	n, ok := body["notification"].(map[string]interface{})
	if !ok {
		return ""
	}
	msg, _ := n["message"].(string)
	return msg
}

func firstSlot(token string) (string, string, error) {
	status, body, err := do(http.MethodGet, "/api/catalog", token, nil)
	if err != nil {
		return "", "", err
	}
	if status != http.StatusOK {
		return "", "", fmt.Errorf("catalog returned %d", status)
	}
	specialties, _ := body["specialties"].([]interface{})
	slots, _ := body["time_slots"].([]interface{})
	if len(specialties) == 0 || len(slots) == 0 {
		return "", "", fmt.Errorf("catalog is empty")
	}
	return fmt.Sprint(specialties[0]), fmt.Sprint(slots[0]), nil
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func scenarioLogin(t *T) {
	status, body, err := do(http.MethodPost, "/auth/login", "", map[string]string{"card_number": "123", "pin": "1"})
	if err != nil {
		t.fatalf("login request: %v", err)
		return
	}
	t.check("invalid credentials rejected with 401", status == http.StatusUnauthorized)
	t.check("invalid credentials message", body["error"] == "senha ou numero errado")

	token, err := login()
	if err != nil {
		t.fatalf("login: %v", err)
		return
	}
	t.check("valid credentials issue a token", token != "")

	status, _, err = do(http.MethodGet, "/api/dashboard", "", nil)
	t.check("dashboard requires a session", err == nil && status == http.StatusUnauthorized)
}

func scenarioDashboard(t *T) {
	token, err := login()
	if err != nil {
		t.fatalf("login: %v", err)
		return
	}
	status, body, err := do(http.MethodGet, "/api/dashboard", token, nil)
	if err != nil {
		t.fatalf("dashboard: %v", err)
		return
	}
	t.check("dashboard returns 200", status == http.StatusOK)
	appts := list(body, "appointments")
	t.check("dashboard lists appointments", len(appts) > 0)
	if len(appts) > 0 {
		t.check("appointment carries status", appts[0]["status"] == "Confirmado")
		label, _ := appts[0]["full_date_label"].(string)
		t.check("appointment date is rendered in Portuguese", strings.Contains(label, " de "))
	}
	waiting := list(body, "waiting_list")
	t.check("dashboard lists waiting list", len(waiting) > 0)
	for _, item := range waiting {
		pos, _ := item["position"].(float64)
		total, _ := item["total_in_queue"].(float64)
		t.check(fmt.Sprintf("queue position %v within %v", pos, total), pos >= 1 && pos <= total)
	}
}

func scenarioSchedule(t *T) {
	token, err := login()
	if err != nil {
		t.fatalf("login: %v", err)
		return
	}
	specialty, slot, err := firstSlot(token)
	if err != nil {
		t.fatalf("catalog: %v", err)
		return
	}

	status, body, err := do(http.MethodPost, "/api/appointments", token, map[string]string{"specialty": "Astrologia", "time": slot})
	t.check("unknown specialty rejected with 422", err == nil && status == http.StatusUnprocessableEntity)
	t.check("schedule failure message", body["error"] == "Erro ao agendar consulta.")

	status, body, err = do(http.MethodPost, "/api/appointments", token, map[string]string{"specialty": specialty, "time": slot})
	if err != nil {
		t.fatalf("schedule: %v", err)
		return
	}
	t.check("schedule returns 201", status == http.StatusCreated)
	t.check("schedule success notification", notificationMessage(body) == fmt.Sprintf("Solicitação para %s enviada com sucesso!", specialty))

	appt, _ := body["appointment"].(map[string]interface{})
	id, _ := appt["id"].(string)
	t.check("new appointment has an id", id != "")

	_, listed, err := do(http.MethodGet, "/api/appointments", token, nil)
	found := false
	for _, a := range list(listed, "appointments") {
		if a["id"] == id {
			found = true
		}
	}
	t.check("new appointment is listed", err == nil && found)
}

func scenarioCancel(t *T) {
	token, err := login()
	if err != nil {
		t.fatalf("login: %v", err)
		return
	}
	specialty, slot, err := firstSlot(token)
	if err != nil {
		t.fatalf("catalog: %v", err)
		return
	}
	_, body, err := do(http.MethodPost, "/api/appointments", token, map[string]string{"specialty": specialty, "time": slot})
	if err != nil {
		t.fatalf("schedule: %v", err)
		return
	}
	appt, _ := body["appointment"].(map[string]interface{})
	id, _ := appt["id"].(string)
	if id == "" {
		t.fatalf("schedule returned no appointment")
		return
	}

	status, _, _ := do(http.MethodDelete, "/api/appointments/"+id, token, nil)
	t.check("cancel without confirmation returns 409", status == http.StatusConflict)

	status, prompt, err := do(http.MethodPost, "/api/appointments/"+id+"/cancellation", token, nil)
	if err != nil || status != http.StatusOK {
		t.fatalf("cancellation prompt: status=%d err=%v", status, err)
		return
	}
	question, _ := prompt["prompt"].(string)
	t.check("prompt names the specialty", strings.Contains(question, specialty))
	confirmation, _ := prompt["confirmation"].(string)

	status, body, err = do(http.MethodDelete, "/api/appointments/"+id+"?confirmation="+url.QueryEscape(confirmation), token, nil)
	t.check("confirmed cancel returns 200", err == nil && status == http.StatusOK)
	t.check("cancel success notification", notificationMessage(body) == "Consulta cancelada com sucesso!")

	status, _, _ = do(http.MethodDelete, "/api/appointments/"+id+"?confirmation="+url.QueryEscape(confirmation), token, nil)
	t.check("confirmation cannot be reused", status == http.StatusConflict)

	status, _, _ = do(http.MethodPost, "/api/appointments/"+id+"/cancellation", token, nil)
	t.check("cancelled appointment is gone", status == http.StatusNotFound)
}

func scenarioNotificationStream(t *T) {
	token, err := login()
	if err != nil {
		t.fatalf("login: %v", err)
		return
	}
	wsURL := strings.Replace(apiBase, "http", "ws", 1) + "/api/notifications/ws?access_token=" + url.QueryEscape(token)
	header := http.Header{"Origin": []string{apiBase}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.fatalf("dial notification stream: %v", err)
		return
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var snapshot map[string]interface{}
	t.check("stream sends a snapshot", conn.ReadJSON(&snapshot) == nil && snapshot["type"] == "snapshot")

	specialty, slot, err := firstSlot(token)
	if err != nil {
		t.fatalf("catalog: %v", err)
		return
	}
	if _, _, err := do(http.MethodPost, "/api/appointments", token, map[string]string{"specialty": specialty, "time": slot}); err != nil {
		t.fatalf("schedule: %v", err)
		return
	}
	var update map[string]interface{}
	err = conn.ReadJSON(&update)
	t.check("stream delivers the schedule notification", err == nil && update["type"] == "notification")
	t.check("streamed notification text", notificationMessage(update) == fmt.Sprintf("Solicitação para %s enviada com sucesso!", specialty))
}

func main() {
	apiBase = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if apiBase == "" {
		fmt.Fprintln(os.Stderr, "ERROR: API_BASE_URL required")
		os.Exit(1)
	}

	scenarios := []scenario{
		{"login", scenarioLogin},
		{"dashboard", scenarioDashboard},
		{"schedule", scenarioSchedule},
		{"cancel", scenarioCancel},
		{"notification-stream", scenarioNotificationStream},
	}

	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed := 0
	totalFailed := 0
	results := make([]string, 0)

	for _, s := range scenarios {
		if filter != "" && s.Name != filter {
			continue
		}

		fmt.Printf("\n========================================\n")
		fmt.Printf("SCENARIO: %s\n", s.Name)
		fmt.Printf("========================================\n")

		t := &T{name: s.Name}
		s.Fn(t)

		totalPassed += t.passed
		totalFailed += t.failed

		status := "✅"
		if t.failed > 0 {
			status = "❌"
		}
		results = append(results, fmt.Sprintf("  %s %s (%d passed, %d failed)", status, s.Name, t.passed, t.failed))
	}

	fmt.Printf("\n========================================\n")
	fmt.Println("SUMMARY")
	fmt.Printf("========================================\n")
	for _, r := range results {
		fmt.Println(r)
	}
	fmt.Printf("\nTotal: %d passed, %d failed\n", totalPassed, totalFailed)

	if totalFailed > 0 {
		fmt.Println("\n❌ SOME TESTS FAILED")
		os.Exit(1)
	}
	fmt.Println("\n✅ ALL TESTS PASSED")
}
