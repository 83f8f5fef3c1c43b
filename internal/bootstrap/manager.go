package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Load resolves the bootstrap payload: the local file wins, otherwise the
// blob mirror is restored to disk. A nil store disables mirroring.
func Load(ctx context.Context, path string, store BlobStore) (Payload, error) {
	payload, localErr := LoadFile(path)
	if localErr == nil {
		if store != nil {
			if err := mirror(ctx, store, payload); err != nil {
				log.Warn().Err(err).Msg("bootstrap blob mirror failed")
			}
		}
		return payload, nil
	}
	if !errors.Is(localErr, ErrPayloadNotFound) {
		return Payload{}, localErr
	}
	if store == nil {
		return Payload{}, localErr
	}

	data, blobErr := store.Load(ctx)
	if blobErr != nil {
		if errors.Is(blobErr, ErrBlobNotFound) {
			return Payload{}, ErrPayloadNotFound
		}
		return Payload{}, fmt.Errorf("load bootstrap blob: %w", blobErr)
	}

	payload, err := Decode(data)
	if err != nil {
		return Payload{}, err
	}
	if err := WriteFile(path, payload); err != nil {
		return Payload{}, fmt.Errorf("restore bootstrap: %w", err)
	}
	log.Info().Str("path", path).Msg("bootstrap restored from blob mirror")
	return payload, nil
}

func mirror(ctx context.Context, store BlobStore, payload Payload) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return store.Save(ctx, data)
}
