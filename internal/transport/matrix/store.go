package matrix

import (
	"context"
	"errors"

	"maunium.net/go/mautrix/id"

	"spacebot/internal/storage"
)

// syncStore keeps the filter id and sync token in the session store so a
// restart resumes where the last sync left off.
type syncStore struct {
	kv storage.Store
}

func (s syncStore) SaveFilterID(ctx context.Context, userID id.UserID, filterID string) error {
	return s.kv.Put(ctx, "filter:"+userID.String(), filterID)
}

func (s syncStore) LoadFilterID(ctx context.Context, userID id.UserID) (string, error) {
	return s.load(ctx, "filter:"+userID.String())
}

func (s syncStore) SaveNextBatch(ctx context.Context, userID id.UserID, nextBatchToken string) error {
	return s.kv.Put(ctx, "next_batch:"+userID.String(), nextBatchToken)
}

func (s syncStore) LoadNextBatch(ctx context.Context, userID id.UserID) (string, error) {
	return s.load(ctx, "next_batch:"+userID.String())
}

func (s syncStore) load(ctx context.Context, key string) (string, error) {
	v, err := s.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	return v, err
}

// Session is the login state reused across restarts.
type Session struct {
	Homeserver  string
	UserID      string
	DeviceID    string
	AccessToken string
}

const (
	keyHomeserver = "session:homeserver"
	keyUserID     = "session:user_id"
	keyDeviceID   = "session:device_id"
	keyToken      = "session:access_token"
)

func loadSession(ctx context.Context, kv storage.Store) (Session, bool, error) {
	var s Session
	for _, f := range []struct {
		key string
		dst *string
	}{
		{keyHomeserver, &s.Homeserver},
		{keyUserID, &s.UserID},
		{keyDeviceID, &s.DeviceID},
		{keyToken, &s.AccessToken},
	} {
		v, err := kv.Get(ctx, f.key)
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, false, nil
		}
		if err != nil {
			return Session{}, false, err
		}
		*f.dst = v
	}
	return s, s.AccessToken != "", nil
}

func saveSession(ctx context.Context, kv storage.Store, s Session) error {
	for k, v := range map[string]string{
		keyHomeserver: s.Homeserver,
		keyUserID:     s.UserID,
		keyDeviceID:   s.DeviceID,
		keyToken:      s.AccessToken,
	} {
		if err := kv.Put(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

func clearSession(ctx context.Context, kv storage.Store) {
	for _, k := range []string{keyHomeserver, keyUserID, keyDeviceID, keyToken} {
		_ = kv.Delete(ctx, k)
	}
}
