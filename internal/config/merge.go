package config

import "dario.cat/mergo"

// mergeFileConfig merges src on top of dst, with non-zero fields in src
// overriding dst, mirroring the teacher's pkg/config/loader.go use of
// mergo.Merge(queueConfig, tarsyConfig.Queue, mergo.WithOverride) for the
// queue settings. Used once per layer (user, then project, then explicit
// override) so each later layer only needs to set the fields it cares
// about.
func mergeFileConfig(dst *FileConfig, src *FileConfig) error {
	if src == nil {
		return nil
	}
	return mergo.Merge(dst, src, mergo.WithOverride)
}

// applyFileConfig folds a resolved FileConfig layer into a Config, using
// mergo for every substructure the layer sets: into the value fields
// (Defaults, Decay, LLM, Daemon, Lock, HTTP) and into the struct that the
// base Config's Queue pointer points at.
func applyFileConfig(cfg *Config, fc *FileConfig) error {
	if fc == nil {
		return nil
	}
	if fc.Defaults != nil {
		if err := mergo.Merge(&cfg.Defaults, *fc.Defaults, mergo.WithOverride); err != nil {
			return err
		}
	}
	if fc.Decay != nil {
		if err := mergo.Merge(&cfg.Decay, *fc.Decay, mergo.WithOverride); err != nil {
			return err
		}
	}
	if fc.LLM != nil {
		if err := mergo.Merge(&cfg.LLM, *fc.LLM, mergo.WithOverride); err != nil {
			return err
		}
	}
	if fc.Queue != nil {
		if err := mergo.Merge(cfg.Queue, fc.Queue, mergo.WithOverride); err != nil {
			return err
		}
	}
	if fc.Daemon != nil {
		if err := mergo.Merge(&cfg.Daemon, *fc.Daemon, mergo.WithOverride); err != nil {
			return err
		}
	}
	if fc.Lock != nil {
		if err := mergo.Merge(&cfg.Lock, *fc.Lock, mergo.WithOverride); err != nil {
			return err
		}
	}
	if fc.HTTP != nil {
		if err := mergo.Merge(&cfg.HTTP, *fc.HTTP, mergo.WithOverride); err != nil {
			return err
		}
	}
	return nil
}

// DeepMergePatch deep-merges a partial patch map into a FileConfig-shaped
// map, used by PATCH /api/config (§6). Values in patch win.
func DeepMergePatch(base map[string]any, patch map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}
	for k, pv := range patch {
		if bv, ok := result[k]; ok {
			if bMap, ok1 := bv.(map[string]any); ok1 {
				if pMap, ok2 := pv.(map[string]any); ok2 {
					result[k] = DeepMergePatch(bMap, pMap)
					continue
				}
			}
		}
		result[k] = pv
	}
	return result
}
