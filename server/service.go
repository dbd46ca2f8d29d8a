package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/janelia-flyem/omerotools/model"
	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/service"
	"github.com/janelia-flyem/omerotools/storage"

	"github.com/google/uuid"
)

// APIVersion is the version of the server contract implemented here.
const APIVersion = "5.2.0"

type credential struct {
	userID   int64
	password string
}

// Service is the reference image-data server.
type Service struct {
	kv     *storage.KV
	blobs  *storage.Blobs
	logger ome.Logger

	secret         []byte
	diskUsageDelay time.Duration
	credentials    map[string]credential

	mu       sync.Mutex
	sessions map[string]int64 // session id -> user id
	handles  map[string]*diskUsageHandle

	running sync.WaitGroup
}

// Open returns a server using the store and bucket of the given configuration.
func Open(ctx context.Context, c *ome.ServerConfig, logger ome.Logger) (*Service, error) {
	kv, err := storage.OpenKV(c.DataPath, logger)
	if err != nil {
		return nil, fmt.Errorf("can't open key-value store: %v", err)
	}
	blobURL := c.BlobURL
	if blobURL == "" {
		blobURL = ome.DefaultBlobURL
	}
	blobs, err := storage.OpenBlobs(ctx, blobURL, logger)
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("can't open blob store: %v", err)
	}
	secret := c.SecretKey
	if secret == "" {
		secret = uuid.New().String()
		logger.Warningf("No secret_key configured; sessions won't survive a restart.\n")
	}
	svc := &Service{
		kv:             kv,
		blobs:          blobs,
		logger:         logger,
		secret:         []byte(secret),
		diskUsageDelay: time.Duration(c.DiskUsageDelay) * time.Millisecond,
		credentials:    make(map[string]credential),
		sessions:       make(map[string]int64),
		handles:        make(map[string]*diskUsageHandle),
	}
	if err := svc.seed(c.Users); err != nil {
		svc.Close()
		return nil, err
	}
	logger.Infof("Opened server with %s and %s\n", kv, blobs)
	return svc, nil
}

// Close waits for pending disk usage computations, then shuts down the stores.
// Sessions are invalidated.
func (svc *Service) Close() error {
	svc.running.Wait()
	svc.mu.Lock()
	svc.sessions = make(map[string]int64)
	svc.mu.Unlock()

	berr := svc.blobs.Close()
	if err := svc.kv.Close(); err != nil {
		return err
	}
	return berr
}

// Version returns the server API version.
func (svc *Service) Version() string {
	return APIVersion
}

// Login checks credentials and returns a session token.
func (svc *Service) Login(ctx context.Context, user, password string) (string, error) {
	cred, found := svc.credentials[user]
	if !found || cred.password != password {
		return "", ome.ErrBadCredentials
	}
	var e model.Experimenter
	if found, err := svc.kv.GetObject(storage.Key(experimenterPrefix, cred.userID), &e); err != nil {
		return "", err
	} else if !found {
		return "", ome.ErrBadCredentials
	}
	sid := uuid.New().String()
	token, err := svc.generateJWT(sid, e.ID, e.Admin)
	if err != nil {
		return "", err
	}
	svc.mu.Lock()
	svc.sessions[sid] = e.ID
	svc.mu.Unlock()
	svc.logger.Infof("User %q (id %d) logged in, session %s\n", e.OmeName, e.ID, sid)
	return token, nil
}

// Join returns the session of a token issued by Login.
func (svc *Service) Join(token string) (service.Session, error) {
	return svc.join(token)
}

func (svc *Service) join(token string) (*Session, error) {
	sid, uid, err := svc.parseJWT(token)
	if err != nil {
		return nil, err
	}
	svc.mu.Lock()
	owner, open := svc.sessions[sid]
	svc.mu.Unlock()
	if !open || owner != uid {
		return nil, ome.ErrSessionClosed
	}
	var e model.Experimenter
	found, err := svc.kv.GetObject(storage.Key(experimenterPrefix, uid), &e)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ome.ErrSessionClosed
	}
	ec := model.EventContext{
		SessionID: sid,
		UserID:    e.ID,
		UserName:  e.OmeName,
		GroupID:   e.GroupID,
		IsAdmin:   e.Admin,
	}
	return &Session{svc: svc, ec: ec}, nil
}

// Logout closes the session of a token.
func (svc *Service) Logout(token string) error {
	sid, _, err := svc.parseJWT(token)
	if err != nil {
		return err
	}
	svc.closeSession(sid)
	return nil
}

func (svc *Service) closeSession(sid string) {
	svc.mu.Lock()
	delete(svc.sessions, sid)
	svc.mu.Unlock()
	svc.logger.Debugf("Closed session %s\n", sid)
}

func (svc *Service) sessionOpen(sid string) bool {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	_, open := svc.sessions[sid]
	return open
}
