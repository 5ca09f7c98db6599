package service

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// SenderService simulates the carrier-side SMS gateway used by the
// dispatch worker. Real delivery would swap this for an SMPP or HTTP
// gateway client with the same surface.
type SenderService struct {
	mu          sync.Mutex
	successRate float64 // 0.0 to 1.0 (e.g., 0.95 = 95% success)
	rand        *rand.Rand
}

// NewSenderService creates a new sender service
// successRate: probability of successful send (0.0 to 1.0)
func NewSenderService(successRate float64) *SenderService {
	if successRate < 0.0 {
		successRate = 0.0
	}
	if successRate > 1.0 {
		successRate = 1.0
	}

	return &SenderService{
		successRate: successRate,
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SendResult represents the result of a send attempt
type SendResult struct {
	Success bool
	Error   error
	Latency time.Duration
}

// Send simulates sending an SMS message to a single phone number
func (s *SenderService) Send(phone string, content string) *SendResult {
	start := time.Now()

	s.mu.Lock()
	latency := time.Duration(50+s.rand.Intn(150)) * time.Millisecond
	randomValue := s.rand.Float64()
	failureIndex := s.rand.Intn(len(sendFailures))
	rate := s.successRate
	s.mu.Unlock()

	// Simulate network latency (50-200ms)
	time.Sleep(latency)

	result := &SendResult{
		Success: randomValue < rate,
		Latency: time.Since(start),
	}

	if !result.Success {
		result.Error = fmt.Errorf("failed to send SMS to %s: %s", phone, sendFailures[failureIndex])
	}

	return result
}

var sendFailures = []string{
	"network timeout",
	"invalid phone number",
	"rate limit exceeded",
	"service temporarily unavailable",
	"insufficient balance",
}

// SetSuccessRate updates the success rate (for testing)
func (s *SenderService) SetSuccessRate(rate float64) {
	if rate < 0.0 {
		rate = 0.0
	}
	if rate > 1.0 {
		rate = 1.0
	}
	s.mu.Lock()
	s.successRate = rate
	s.mu.Unlock()
}
