package webrtc

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/logger"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/mailbox"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/metrics"
)

// ChannelLabel is the data channel browsers open to receive state events.
const ChannelLabel = "visibility"

// Client represents a connected WebRTC client
type Client struct {
	id        string
	peerConn  *webrtc.PeerConnection
	events    *mailbox.Mailbox[[]byte]
	closeChan chan struct{}

	eventsSent      atomic.Uint64
	eventsCoalesced atomic.Uint64
}

// Server pushes state events to browsers over WebRTC data channels.
type Server struct {
	clients    map[string]*Client
	clientsMu  sync.RWMutex
	config     webrtc.Configuration
	maxClients int
	api        *webrtc.API
	metrics    *metrics.Metrics
	nextID     atomic.Uint64
}

// NewServer creates a new WebRTC server. m may be nil.
func NewServer(stunServers []string, maxClients int, m *metrics.Metrics) *Server {
	// Configure ICE servers
	iceServers := make([]webrtc.ICEServer, 0, len(stunServers))
	for _, url := range stunServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs: []string{url},
		})
	}

	settingsEngine := webrtc.SettingEngine{
		LoggerFactory: loggerFactory{},
	}
	// Reduce DTLS retransmission timeout (faster connection, less CPU on retries)
	settingsEngine.SetDTLSRetransmissionInterval(time.Second * 2)
	settingsEngine.SetNetworkTypes([]webrtc.NetworkType{
		webrtc.NetworkTypeUDP4,
		webrtc.NetworkTypeUDP6,
	})
	settingsEngine.SetIncludeLoopbackCandidate(true)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingsEngine))

	return &Server{
		clients: make(map[string]*Client),
		config: webrtc.Configuration{
			ICEServers: iceServers,
		},
		maxClients: maxClients,
		api:        api,
		metrics:    m,
	}
}

// HandleOffer handles a WebRTC offer and returns an answer. The offer must
// carry a data channel labelled ChannelLabel.
func (s *Server) HandleOffer(offerJSON []byte) ([]byte, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(offerJSON, &offer); err != nil {
		return nil, fmt.Errorf("failed to parse offer: %w", err)
	}

	if n := s.GetClientCount(); n >= s.maxClients {
		return nil, fmt.Errorf("maximum clients reached (%d)", s.maxClients)
	}

	peerConn, err := s.api.NewPeerConnection(s.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	client := &Client{
		id:        s.generateClientID(),
		peerConn:  peerConn,
		events:    mailbox.New[[]byte](),
		closeChan: make(chan struct{}),
	}

	peerConn.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != ChannelLabel {
			logger.Debug("WebRTC", "Client %s opened unknown channel %q, ignoring", client.id, dc.Label())
			return
		}
		dc.OnOpen(func() {
			logger.Info("WebRTC", "Client %s data channel open", client.id)
			go s.sendEvents(client, dc)
		})
	})

	// Remove client on disconnection, failure, or close
	peerConn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Debug("WebRTC", "Client %s connection state: %s", client.id, state.String())
		if state == webrtc.PeerConnectionStateDisconnected ||
			state == webrtc.PeerConnectionStateFailed ||
			state == webrtc.PeerConnectionStateClosed {
			logger.Info("WebRTC", "Client %s connection lost (Peer: %s), removing...", client.id, state.String())
			s.RemoveClient(client.id)
		}
	})

	if err := peerConn.SetRemoteDescription(offer); err != nil {
		_ = peerConn.Close()
		return nil, fmt.Errorf("failed to set remote description: %w", err)
	}

	answer, err := peerConn.CreateAnswer(nil)
	if err != nil {
		_ = peerConn.Close()
		return nil, fmt.Errorf("failed to create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(peerConn)
	if err := peerConn.SetLocalDescription(answer); err != nil {
		_ = peerConn.Close()
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}

	// Wait for ICE gathering to complete so the answer carries candidates
	<-gatherComplete
	logger.Debug("WebRTC", "ICE gathering complete for client %s", client.id)

	localDesc := peerConn.LocalDescription()
	if localDesc == nil {
		_ = peerConn.Close()
		return nil, fmt.Errorf("no local description available")
	}
	answerJSON, err := json.Marshal(localDesc)
	if err != nil {
		_ = peerConn.Close()
		return nil, fmt.Errorf("failed to marshal answer: %w", err)
	}

	s.clientsMu.Lock()
	s.clients[client.id] = client
	s.updateClientsLocked()
	s.clientsMu.Unlock()

	logger.Info("WebRTC", "Client %s connected", client.id)
	return answerJSON, nil
}

// Broadcast queues a serialized event for every client without blocking.
// A non-empty key lets a newer event replace one the client has not been
// sent yet; events without a key are always delivered.
func (s *Server) Broadcast(key string, data []byte) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, client := range s.clients {
		if replaced, _ := client.events.Push(key, data); replaced {
			client.eventsCoalesced.Add(1)
			if s.metrics != nil {
				s.metrics.EventsCoalesced.Add(1)
			}
		}
	}
}

func (s *Server) sendEvents(client *Client, dc *webrtc.DataChannel) {
	for {
		select {
		case <-client.closeChan:
			return
		case <-client.events.Ready():
			events, open := client.events.Drain()
			for _, data := range events {
				if err := dc.SendText(string(data)); err != nil {
					logger.Warn("WebRTC", "Error sending event to client %s: %v", client.id, err)
					return
				}
				client.eventsSent.Add(1)
			}
			if !open {
				return
			}
		}
	}
}

// RemoveClient removes a client by ID
func (s *Server) RemoveClient(clientID string) {
	s.clientsMu.Lock()
	client, exists := s.clients[clientID]
	if exists {
		delete(s.clients, clientID)
		s.updateClientsLocked()
	}
	s.clientsMu.Unlock()

	if !exists {
		return
	}

	close(client.closeChan)
	client.events.Close()
	_ = client.peerConn.Close()

	logger.Info("WebRTC", "Client %s disconnected (sent: %d, coalesced: %d)",
		clientID, client.eventsSent.Load(), client.eventsCoalesced.Load())
}

// GetClientCount returns the number of connected clients
func (s *Server) GetClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// GetClientStats returns stats for all clients
func (s *Server) GetClientStats() map[string]map[string]uint64 {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	stats := make(map[string]map[string]uint64)
	for id, client := range s.clients {
		stats[id] = map[string]uint64{
			"events_sent":      client.eventsSent.Load(),
			"events_coalesced": client.eventsCoalesced.Load(),
		}
	}
	return stats
}

// Close closes all client connections
func (s *Server) Close() error {
	s.clientsMu.RLock()
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	s.clientsMu.RUnlock()

	for _, id := range ids {
		s.RemoveClient(id)
	}
	return nil
}

func (s *Server) updateClientsLocked() {
	if s.metrics != nil {
		s.metrics.WebRTCClients.Store(uint64(len(s.clients)))
	}
}

func (s *Server) generateClientID() string {
	return fmt.Sprintf("client-%d", s.nextID.Add(1))
}
