package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

func TestConcurrency(t *testing.T) {
	t.Run("DoubleRedeemAttack", func(t *testing.T) {
		ts := newTestServer(t, 10)
		srv := httptest.NewServer(ts.router)
		defer srv.Close()

		claimBody, _ := json.Marshal(map[string]string{"address": richWallet})
		resp, err := http.Post(srv.URL+"/api/claim", "application/json", bytes.NewBuffer(claimBody))
		if err != nil || resp.StatusCode != http.StatusOK {
			t.Fatalf("Failed to request claim: %v", err)
		}
		var issued struct {
			ClaimCode string `json:"claimCode"`
		}
		json.NewDecoder(resp.Body).Decode(&issued)
		resp.Body.Close()

		requests := 30
		var redeemed, rejected int64
		var wg sync.WaitGroup
		wg.Add(requests)

		// The same code is presented many times at once
		for i := 0; i < requests; i++ {
			go func() {
				defer wg.Done()
				redeemBody, _ := json.Marshal(map[string]string{"code": issued.ClaimCode})
				resp, err := http.Post(srv.URL+"/api/redeem", "application/json", bytes.NewBuffer(redeemBody))
				if err != nil {
					return
				}
				defer resp.Body.Close()
				switch resp.StatusCode {
				case http.StatusOK:
					atomic.AddInt64(&redeemed, 1)
				case http.StatusBadRequest:
					atomic.AddInt64(&rejected, 1)
				}
			}()
		}
		wg.Wait()

		if redeemed != 1 {
			t.Errorf("Expected 1 successful redemption, got %d", redeemed)
		}
		if rejected != int64(requests-1) {
			t.Errorf("Expected %d already_used rejections, got %d", requests-1, rejected)
		}
	})

	t.Run("ClaimFloodAttack", func(t *testing.T) {
		points := 5
		ts := newTestServer(t, points)
		srv := httptest.NewServer(ts.router)
		defer srv.Close()

		requests := 40
		var issued, limited int64
		var wg sync.WaitGroup
		wg.Add(requests)

		for i := 0; i < requests; i++ {
			go func() {
				defer wg.Done()
				claimBody, _ := json.Marshal(map[string]string{"address": richWallet})
				resp, err := http.Post(srv.URL+"/api/claim", "application/json", bytes.NewBuffer(claimBody))
				if err != nil {
					return
				}
				defer resp.Body.Close()
				switch resp.StatusCode {
				case http.StatusOK:
					atomic.AddInt64(&issued, 1)
				case http.StatusTooManyRequests:
					atomic.AddInt64(&limited, 1)
				}
			}()
		}
		wg.Wait()

		if issued != int64(points) {
			t.Errorf("Expected %d issued codes, got %d", points, issued)
		}
		if limited != int64(requests-points) {
			t.Errorf("Expected %d rate limited requests, got %d", requests-points, limited)
		}
	})
}
