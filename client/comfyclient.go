package client

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// ComfyClient is a read-only client for a ComfyUI backend.  It fetches
// history, node type information and rendered images; it never queues
// prompts or uploads anything.
type ComfyClient struct {
	serverBaseAddress string
	serverAddress     string
	serverPort        int
	clientid          string
	httpclient        *http.Client
}

// NewComfyClient creates a client for the ComfyUI instance at the given
// address and port.  Each client carries a unique id used to tag its
// websocket session.
func NewComfyClient(server_address string, server_port int) *ComfyClient {
	return &ComfyClient{
		serverBaseAddress: server_address + ":" + strconv.Itoa(server_port),
		serverAddress:     server_address,
		serverPort:        server_port,
		clientid:          uuid.New().String(),
		httpclient:        &http.Client{},
	}
}

// ClientID returns the unique client ID for the connection to the ComfyUI backend
func (c *ComfyClient) ClientID() string {
	return c.clientid
}

// return the underlying http client
func (c *ComfyClient) HttpClient() *http.Client {
	return c.httpclient
}

// set the underlying http client
func (c *ComfyClient) SetHttpClient(client *http.Client) {
	c.httpclient = client
}
