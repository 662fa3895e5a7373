package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ParticipantSessionKey returns the cache key for a participant's login session
func (r *CacheKeyStruct) ParticipantSessionKey(participantID int) string {
	return fmt.Sprintf("login:%d", participantID)
}

// TryoutPayloadKey returns the cache key for a tryout's participant-facing payload
func (r *CacheKeyStruct) TryoutPayloadKey(tryoutID string) string {
	return fmt.Sprintf("tryout:%s:payload", tryoutID)
}

var CacheKey = NewCacheKeyStruct()
