package viewer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type cachedHost struct {
	host              *Host
	expireAtTimestamp int64
}

// LocalCache Open viewer sessions by id. Sessions that are not read for ttl are
// closed by a cleanup loop, which flushes their edits.
type LocalCache struct {
	stop chan struct{}
	ttl  time.Duration

	wg       sync.WaitGroup
	mu       sync.RWMutex
	sessions map[string]cachedHost
}

var (
	errSessionNotInCache = errors.New("the viewer session isn't in cache")
)

// NewLocalCache Create a new session cache
func NewLocalCache(ttl time.Duration, cleanupInterval time.Duration) *LocalCache {
	log.Info("Creating new session cache with cleanup interval ", cleanupInterval)
	lc := &LocalCache{
		sessions: make(map[string]cachedHost),
		stop:     make(chan struct{}),
		ttl:      ttl,
	}

	lc.wg.Add(1)
	go func(cleanupInterval time.Duration) {
		defer lc.wg.Done()
		lc.cleanupLoop(cleanupInterval)
	}(cleanupInterval)

	return lc
}

// cleanupLoop Close and drop expired sessions
func (lc *LocalCache) cleanupLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-lc.stop:
			return
		case <-t.C:
			lc.Expire(time.Now())
		}
	}
}

// Expire Close every session whose expiry is not after now
func (lc *LocalCache) Expire(now time.Time) int {
	lc.mu.Lock()
	var expired []*Host
	for id, cs := range lc.sessions {
		if cs.expireAtTimestamp <= now.Unix() {
			log.Info("Viewer session expired: ", id)
			expired = append(expired, cs.host)
			delete(lc.sessions, id)
		}
	}
	lc.mu.Unlock()

	for _, host := range expired {
		closeHost(host)
	}
	return len(expired)
}

func closeHost(host *Host) {
	if err := host.Close(); err != nil && !errors.Is(err, ErrClosed) {
		log.Warn("Closing viewer session failed: ", err)
	}
}

// Stop End the cleanup loop. Sessions stay open.
func (lc *LocalCache) Stop() {
	close(lc.stop)
	lc.wg.Wait()
}

// Add Put a session in the cache
func (lc *LocalCache) Add(id string, host *Host) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	log.Debug(fmt.Sprintf("Adding %s to cache", id))

	lc.sessions[id] = cachedHost{
		host:              host,
		expireAtTimestamp: time.Now().Add(lc.ttl).Unix(),
	}
	log.Debug(fmt.Sprintf("There are now %d sessions in cache", len(lc.sessions)))
}

// Read Get a session and push its expiry back
func (lc *LocalCache) Read(id string) (*Host, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	log.Debug("Reading from cache with ID ", id)
	cs, ok := lc.sessions[id]
	if !ok {
		log.Debug("ID not found ", id)
		return nil, errSessionNotInCache
	}
	cs.expireAtTimestamp = time.Now().Add(lc.ttl).Unix()
	lc.sessions[id] = cs
	return cs.host, nil
}

// Len Number of cached sessions
func (lc *LocalCache) Len() int {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return len(lc.sessions)
}

// Remove Close a session and drop it
func (lc *LocalCache) Remove(id string) error {
	lc.mu.Lock()
	cs, ok := lc.sessions[id]
	delete(lc.sessions, id)
	lc.mu.Unlock()
	if !ok {
		return errSessionNotInCache
	}
	log.Debug("Closing viewer session with ID ", id)
	closeHost(cs.host)
	return nil
}

// EmptyCache Close and drop every session
func (lc *LocalCache) EmptyCache() {
	lc.mu.Lock()
	sessions := lc.sessions
	lc.sessions = make(map[string]cachedHost)
	lc.mu.Unlock()
	log.Debug("Emptying complete cache.")

	for key, cs := range sessions {
		log.Debug(fmt.Sprintf("Closing session %s", key))
		closeHost(cs.host)
	}
}

// IsNotFound Whether err means the session id is unknown
func IsNotFound(err error) bool {
	return errors.Is(err, errSessionNotInCache)
}
