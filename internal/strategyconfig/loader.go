package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// Load reads a strategy YAML file and returns Config with raw bytes
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return cfg, data, nil
}

// Parse decodes, defaults and validates a strategy document
func Parse(data []byte) (*Config, error) {
	var cfg Config
	// 기본값 먼저 → YAML 값이 덮어씀
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode strategy: %w", err)
	}

	// 슬라이스 원소는 디코딩 후 기본값 적용
	for i := range cfg.Risk {
		if err := defaults.Set(&cfg.Risk[i]); err != nil {
			return nil, fmt.Errorf("apply defaults to risk[%d]: %w", i, err)
		}
		applyRuleDefaults(&cfg.Risk[i])
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyRuleDefaults fills kind-specific defaults
func applyRuleDefaults(r *RiskRule) {
	switch r.Kind {
	case "fixed_stop_loss":
		if r.PercentLoss == 0 {
			r.PercentLoss = 0.10
		}
	case "volatility_limit":
		if r.Lookback == 0 {
			r.Lookback = 20
		}
	}
}

// Hash generates SHA256 hash from Config (canonical JSON)
// 주의: map 대신 struct 사용으로 해시 재현성 보장
func Hash(cfg *Config) (string, error) {
	// Struct → JSON (결정적 순서)
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
