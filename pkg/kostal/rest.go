package kostal

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"
)

// PlenticoreRESTClient implements the Plenticore authentication flow, a
// SCRAM style exchange followed by an AES-GCM wrapped session creation.
type PlenticoreRESTClient struct {
	baseURL           string
	installerPassword string
	masterPassword    string
	client            *http.Client
	logger            *zap.Logger

	mu        sync.Mutex
	sessionId string
}

func CreatePlenticoreRESTClient(host string, port uint, installerPassword, masterPassword string,
	timeout time.Duration, logger *zap.Logger) InverterRESTClient {
	return &PlenticoreRESTClient{
		baseURL:           fmt.Sprintf("http://%s:%d/api/v1", host, port),
		installerPassword: installerPassword,
		masterPassword:    masterPassword,
		client:            &http.Client{Timeout: timeout},
		logger:            logger,
	}
}

type authStartRequest struct {
	Username string `json:"username"`
	Nonce    string `json:"nonce"`
}

type authStartResponse struct {
	Nonce         string `json:"nonce"`
	TransactionId string `json:"transactionId"`
	Rounds        int    `json:"rounds"`
	Salt          string `json:"salt"`
}

type authFinishRequest struct {
	TransactionId string `json:"transactionId"`
	Proof         string `json:"proof"`
}

type authFinishResponse struct {
	Token string `json:"token"`
}

type createSessionRequest struct {
	TransactionId string `json:"transactionId"`
	IV            string `json:"iv"`
	Tag           string `json:"tag"`
	Payload       string `json:"payload"`
}

type createSessionResponse struct {
	SessionId string `json:"sessionId"`
}

// scramKeys holds the derived key material of one handshake.
type scramKeys struct {
	clientKey []byte
	storedKey []byte
	serverKey []byte
	authMsg   string
}

// deriveScramKeys computes the client proof material from the auth/start
// response. Pure, deterministic for fixed inputs.
func deriveScramKeys(password string, saltB64 string, rounds int, clientNonce, serverNonce string) (*scramKeys, error) {
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return nil, fmt.Errorf("kostal: invalid salt: %w", err)
	}
	saltedPwd := pbkdf2.Key([]byte(password), salt, rounds, sha256.Size, sha256.New)

	clientKey := hmacSHA256(saltedPwd, []byte("Client Key"))
	serverKey := hmacSHA256(saltedPwd, []byte("Server Key"))
	storedKey := sha256.Sum256(clientKey)

	authMsg := fmt.Sprintf("n=master,r=%s,r=%s,s=%s,i=%d,c=biws,r=%s",
		clientNonce, serverNonce, saltB64, rounds, serverNonce)

	return &scramKeys{
		clientKey: clientKey,
		storedKey: storedKey[:],
		serverKey: serverKey,
		authMsg:   authMsg,
	}, nil
}

func (k *scramKeys) proof() string {
	sig := hmacSHA256(k.storedKey, []byte(k.authMsg))
	xored := make([]byte, len(k.clientKey))
	for i := range k.clientKey {
		xored[i] = k.clientKey[i] ^ sig[i]
	}
	return base64.StdEncoding.EncodeToString(xored)
}

func (k *scramKeys) protocolKey() []byte {
	mac := hmac.New(sha256.New, k.storedKey)
	mac.Write([]byte("Session Key"))
	mac.Write([]byte(k.authMsg))
	mac.Write(k.clientKey)
	return mac.Sum(nil)
}

// sealSessionPayload encrypts token+masterPassword with AES-GCM using a
// 16 byte nonce as the device firmware expects.
func sealSessionPayload(protocolKey []byte, token, masterPassword string, iv []byte) (payload, tag []byte, err error) {
	block, err := aes.NewCipher(protocolKey)
	if err != nil {
		return nil, nil, err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return nil, nil, err
	}
	sealed := gcm.Seal(nil, iv, []byte(token+masterPassword), nil)
	split := len(sealed) - gcm.Overhead()
	return sealed[:split], sealed[split:], nil
}

func (c *PlenticoreRESTClient) Login() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.login()
}

func (c *PlenticoreRESTClient) login() error {
	clientNonce := base64.StdEncoding.EncodeToString([]byte(randomLetters(12)))

	var start authStartResponse
	err := c.postJSON("/auth/start", authStartRequest{Username: "master", Nonce: clientNonce}, &start)
	if err != nil {
		return fmt.Errorf("kostal: auth start: %w", err)
	}

	keys, err := deriveScramKeys(c.installerPassword, start.Salt, start.Rounds, clientNonce, start.Nonce)
	if err != nil {
		return err
	}

	var finish authFinishResponse
	err = c.postJSON("/auth/finish", authFinishRequest{
		TransactionId: start.TransactionId,
		Proof:         keys.proof(),
	}, &finish)
	if err != nil {
		return fmt.Errorf("kostal: auth finish: %w", err)
	}

	iv := make([]byte, 16)
	if _, err := rand.Read(iv); err != nil {
		return err
	}
	payload, tag, err := sealSessionPayload(keys.protocolKey(), finish.Token, c.masterPassword, iv)
	if err != nil {
		return err
	}

	var session createSessionResponse
	err = c.postJSON("/auth/create_session", createSessionRequest{
		TransactionId: start.TransactionId,
		IV:            base64.StdEncoding.EncodeToString(iv),
		Tag:           base64.StdEncoding.EncodeToString(tag),
		Payload:       base64.StdEncoding.EncodeToString(payload),
	}, &session)
	if err != nil {
		return fmt.Errorf("kostal: create session: %w", err)
	}
	c.sessionId = session.SessionId

	ok, err := c.checkSession()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("kostal: session verification failed")
	}
	c.logger.Info("kostal REST session established")
	return nil
}

func (c *PlenticoreRESTClient) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionId == "" {
		return nil
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/auth/logout", nil)
	if err != nil {
		return err
	}
	c.applyHeaders(req)
	resp, err := c.client.Do(req)
	if err == nil {
		resp.Body.Close()
	}
	c.sessionId = ""
	return err
}

func (c *PlenticoreRESTClient) SetExternControl(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureAuthenticated(); err != nil {
		return err
	}

	mode := ExternControlInternal
	if enabled {
		mode = ExternControlModbus
	}
	payload := []map[string]any{{
		"moduleid": "devices:local",
		"settings": []SettingValue{{Id: SettingExternControl, Value: mode}},
	}}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPut, c.baseURL+"/settings", bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.applyHeaders(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("kostal: set extern control failed with status %d", resp.StatusCode)
	}
	c.logger.Info("battery control mode changed", zap.Bool("external", enabled))
	return nil
}

func (c *PlenticoreRESTClient) GetSetting(settingId string) (*SettingValue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureAuthenticated(); err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/settings/%s/%s", c.baseURL,
		url.PathEscape("devices:local"), url.PathEscape(settingId))
	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kostal: get setting %s failed with status %d", settingId, resp.StatusCode)
	}
	var values []SettingValue
	if err := json.NewDecoder(resp.Body).Decode(&values); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("kostal: setting %s not found", settingId)
	}
	return &values[0], nil
}

func (c *PlenticoreRESTClient) TestConnection() error {
	resp, err := c.client.Get(c.baseURL + "/auth/start")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *PlenticoreRESTClient) ensureAuthenticated() error {
	if c.sessionId != "" {
		ok, err := c.checkSession()
		if err == nil && ok {
			return nil
		}
	}
	return c.login()
}

func (c *PlenticoreRESTClient) checkSession() (bool, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/auth/me", nil)
	if err != nil {
		return false, err
	}
	c.applyHeaders(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	var me struct {
		Authenticated bool `json:"authenticated"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return false, err
	}
	return me.Authenticated, nil
}

func (c *PlenticoreRESTClient) postJSON(path string, reqBody any, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.applyHeaders(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *PlenticoreRESTClient) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.sessionId != "" {
		req.Header.Set("Authorization", "Session "+c.sessionId)
	}
}

func hmacSHA256(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}

const nonceLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func randomLetters(n int) string {
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(nonceLetters))))
		if err != nil {
			// crypto/rand failing is not recoverable here
			panic(err)
		}
		out[i] = nonceLetters[idx.Int64()]
	}
	return string(out)
}

// ensure interface compliance
var _ InverterRESTClient = (*PlenticoreRESTClient)(nil)
