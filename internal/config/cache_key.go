package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// LearnerLoginKey returns the cache key for a learner's login session.
func (r *CacheKeyStruct) LearnerLoginKey(learnerID int) string {
	return fmt.Sprintf("login:%d", learnerID)
}

// SessionSnapshotKey returns the cache key for a learner's exam session snapshot.
func (r *CacheKeyStruct) SessionSnapshotKey(examID string, learnerID int) string {
	return fmt.Sprintf("learner:%d:exam:%s:snapshot", learnerID, examID)
}

// BankPayloadKey returns the cache key for an exam's sanitized question bank.
func (r *CacheKeyStruct) BankPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:bank", examID)
}

// BankFullKey returns the cache key for an exam's full question bank,
// answer keys included. Never served to clients.
func (r *CacheKeyStruct) BankFullKey(examID string) string {
	return fmt.Sprintf("exam:%s:bank_full", examID)
}

// EntitlementKey returns the cache key for a learner's entitlement to an exam.
func (r *CacheKeyStruct) EntitlementKey(examID string, learnerID int) string {
	return fmt.Sprintf("learner:%d:exam:%s:entitled", learnerID, examID)
}

var CacheKey = NewCacheKeyStruct()
