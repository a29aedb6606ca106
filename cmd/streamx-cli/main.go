// Command streamx-cli is the interactive operator shell for the StreamX
// entitlement server. It is a plain client of the HTTP surface; the backend
// handles most errors, so this stays primitive on purpose.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const version = "1.1.0"

const authHeader = "X-StreamX-Token"

type cli struct {
	baseURL string
	authKey string
	client  *http.Client
	in      *bufio.Reader
}

type credentials struct {
	AuthKey string `json:"authkey"`
}

func main() {
	fmt.Printf("StreamX Payment CLI v%s\n\n", version)

	c := &cli{
		client: &http.Client{Timeout: 10 * time.Second},
		in:     bufio.NewReader(os.Stdin),
	}

	c.baseURL = strings.TrimRight(c.prompt("StreamX Purchase Server URI (localhost:8080): "), "/")
	if c.baseURL == "" {
		c.baseURL = "http://localhost:8080"
	}
	if !strings.HasPrefix(c.baseURL, "http") {
		c.baseURL = "http://" + c.baseURL
	}

	credFile := credentialsPath()
	if creds, err := loadCredentials(credFile); err == nil {
		c.authKey = creds.AuthKey
	} else {
		c.authKey = c.prompt("StreamX Authentication Key: ")
		if strings.EqualFold(c.prompt("Save these credentials (y/N)? "), "y") {
			if err := saveCredentials(credFile, credentials{AuthKey: c.authKey}); err != nil {
				fmt.Println("[streamx]: failed to save credentials:", err)
			}
		}
	}

	if _, err := c.request("GET", "/", nil); err != nil {
		fmt.Println("Failed to connect to Purchase Server; check URI and API key.")
		os.Exit(1)
	}
	clearScreen()
	fmt.Println("-+-+-+-+-+- Connected to StreamX -+-+-+-+-+-")
	fmt.Println("\nWelcome to the StreamX Payment System.")
	fmt.Println("Type 'help' for a list of commands.")
	fmt.Println()

	for {
		fmt.Print("SX >> ")
		line, err := c.in.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println()
				return
			}
			continue
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		c.dispatch(args[0], args[1:])
	}
}

func (c *cli) dispatch(cmd string, args []string) {
	switch cmd {
	case "help":
		c.cmdHelp()
	case "active":
		c.cmdActive(args)
	case "delete":
		c.cmdDelete(args)
	case "activate":
		c.cmdActivate(args)
	case "info":
		c.cmdInfo(args)
	case "apikeys":
		c.cmdAPIKeys(args)
	case "invalidate":
		c.cmdInvalidate(args)
	case "whitelist":
		c.cmdWhitelist(args, "/whitelist/add")
	case "dewhitelist":
		c.cmdWhitelist(args, "/whitelist/delete")
	case "clear":
		clearScreen()
	case "exit":
		os.Exit(0)
	default:
		fmt.Println("[streamx]: invalid command")
	}
}

func (c *cli) cmdHelp() {
	fmt.Print(`Commands
    help                    -- Shows this message
    active <key>            -- Checks if an API key is valid
    delete <userid>         -- Removes all stored data about a user
    activate <userid>       -- Activate/reactivate a user's API status
    info <userid>           -- Shows information on a user
    apikeys <userid>        -- Fetch all API keys of a user
    invalidate <userid>     -- Invalidates a user's API key
    whitelist <uid> <gid>   -- Adds a game to a user's whitelist
    dewhitelist <uid> <gid> -- Removes a game from a user's whitelist
    clear                   -- Clears the screen
    exit                    -- Exits the CLI
`)
}

func (c *cli) cmdActive(args []string) {
	if len(args) == 0 {
		fmt.Println("[streamx]: missing argument <key>")
		return
	}
	c.print(c.request("GET", "/active/"+args[0], nil))
}

func (c *cli) cmdDelete(args []string) {
	if len(args) == 0 {
		fmt.Println("[streamx]: missing argument <userid>")
		return
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Println("[streamx]: invalid userid")
		return
	}
	c.print(c.request("POST", "/delete", map[string]any{"userid": userID}))
}

func (c *cli) cmdActivate(args []string) {
	if len(args) == 0 {
		fmt.Println("[streamx]: missing argument <userid>")
		return
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Println("[streamx]: invalid userid")
		return
	}

	opt := c.prompt("Activate (1) or extend quota (2)? ")
	if opt != "1" && opt != "2" {
		fmt.Println("[streamx]: invalid option")
		return
	}
	username := ""
	if opt == "1" {
		username = c.prompt("Roblox Username: ")
	}
	days, err := strconv.ParseInt(c.prompt("Quota length (days): "), 10, 64)
	if err != nil {
		fmt.Println("[streamx]: invalid option")
		return
	}
	c.print(c.request("POST", "/activate", map[string]any{
		"userid": userID, "username": username, "expires": days,
	}))
}

func (c *cli) cmdInfo(args []string) {
	if len(args) == 0 {
		fmt.Println("[streamx]: missing argument <userid>")
		return
	}
	c.print(c.request("GET", "/info/"+args[0], nil))
}

func (c *cli) cmdAPIKeys(args []string) {
	if len(args) == 0 {
		fmt.Println("[streamx]: missing argument <userid>")
		return
	}
	res, err := c.request("GET", "/info/"+args[0], nil)
	if err != nil {
		fmt.Println("[streamx]: internal error:", err)
		return
	}
	c.print(res["apikeys"], nil)
}

func (c *cli) cmdInvalidate(args []string) {
	if len(args) == 0 {
		fmt.Println("[streamx]: missing argument <userid>")
		return
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Println("[streamx]: invalid userid")
		return
	}
	reason := c.prompt("Invalidation reason (abuse/regen): ")
	c.print(c.request("POST", "/invalidate", map[string]any{
		"userid": userID, "reason": reason,
	}))
}

func (c *cli) cmdWhitelist(args []string, endpoint string) {
	if len(args) < 2 {
		fmt.Println("[streamx]: missing arguments <uid> <gid>")
		return
	}
	userID, err1 := strconv.ParseInt(args[0], 10, 64)
	gameID, err2 := strconv.ParseInt(args[1], 10, 64)
	if err1 != nil || err2 != nil {
		fmt.Println("[streamx]: invalid userid/gameid")
		return
	}
	c.print(c.request("POST", endpoint, map[string]any{
		"userid": userID, "gameid": gameID,
	}))
}

func (c *cli) request(method, endpoint string, body map[string]any) (map[string]any, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = strings.NewReader(string(payload))
	}

	req, err := http.NewRequest(method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set(authHeader, c.authKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("non-JSON response (status %d)", resp.StatusCode)
	}
	return out, nil
}

func (c *cli) print(res any, err error) {
	if err != nil {
		fmt.Println("[streamx]: internal error:", err)
		return
	}
	out, jsonErr := json.MarshalIndent(res, "", "  ")
	if jsonErr != nil {
		fmt.Println(res)
		return
	}
	fmt.Println(string(out))
}

func (c *cli) prompt(msg string) string {
	fmt.Print(msg)
	line, _ := c.in.ReadString('\n')
	return strings.TrimSpace(line)
}

func credentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".streamx.json"
	}
	return filepath.Join(home, ".streamx.json")
}

func loadCredentials(path string) (credentials, error) {
	var creds credentials
	data, err := os.ReadFile(path)
	if err != nil {
		return creds, err
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return creds, err
	}
	if creds.AuthKey == "" {
		return creds, fmt.Errorf("empty authkey in %s", path)
	}
	return creds, nil
}

func saveCredentials(path string, creds credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func clearScreen() {
	name := "clear"
	if runtime.GOOS == "windows" {
		name = "cls"
	}
	cmd := exec.Command(name)
	cmd.Stdout = os.Stdout
	_ = cmd.Run()
}
