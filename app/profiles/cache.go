package profiles

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

type Cache struct {
	profilesDir string
	cache       map[string]*Profile
	mu          sync.RWMutex
}

func NewCache(profilesDir string) *Cache {
	return &Cache{
		profilesDir: profilesDir,
		cache:       make(map[string]*Profile),
	}
}

func (c *Cache) Run() error {
	if _, err := os.Stat(c.profilesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(c.profilesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		// Derive profile name from filename (remove .yml extension)
		fileName := filepath.Base(file)
		profileName := fileName[:len(fileName)-4]

		profile, err := c.Load(profileName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Profile loaded", "profile", profileName,
			"enabled", profile.Settings.Enabled,
			"refresh_interval", profile.Settings.RefreshInterval)
	}

	return nil
}

func (c *Cache) Load(profileName string) (*Profile, error) {
	profileFile := c.getProfileFilePath(profileName)
	profile, err := c.parseProfile(profileFile)
	if err != nil {
		return nil, err
	}

	// Set profile name from parameter
	profile.Name = profileName

	if err := c.validateProfile(profile); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", profileFile, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[profile.Name] = profile

	return profile, nil
}

func (c *Cache) Get(profileName string) (*Profile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	profile, ok := c.cache[profileName]
	if !ok {
		return nil, fmt.Errorf("profile with name '%s' not found", profileName)
	}
	return profile, nil
}

func (c *Cache) GetAll() map[string]*Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()

	profilesCopy := make(map[string]*Profile, len(c.cache))
	for k, v := range c.cache {
		profilesCopy[k] = v
	}
	return profilesCopy
}

func (c *Cache) GetEnabled() map[string]*Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()

	enabled := make(map[string]*Profile)
	for k, v := range c.cache {
		if v.Settings.Enabled {
			enabled[k] = v
		}
	}
	return enabled
}

func (c *Cache) GetCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func (c *Cache) parseProfile(profileFile string) (*Profile, error) {
	data, err := os.ReadFile(profileFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if profile.Settings.RefreshInterval == 0 {
		profile.Settings.RefreshInterval = 3600
	}
	if profile.Settings.MaxItems == 0 {
		profile.Settings.MaxItems = 50
	}
	if profile.Settings.Timeout == 0 {
		profile.Settings.Timeout = 30
	}

	return &profile, nil
}

func (c *Cache) validateProfile(profile *Profile) error {
	if profile == nil {
		return fmt.Errorf("profile is nil")
	}

	requiredFields := map[string]string{
		"profile name": profile.Name,
		"feed URL":     profile.FeedURL,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	nonNegativeFields := map[string]int{
		"refresh interval": profile.Settings.RefreshInterval,
		"max items":        profile.Settings.MaxItems,
		"timeout":          profile.Settings.Timeout,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	validFields := map[string]bool{
		"title":      true,
		"body":       true,
		"author":     true,
		"link":       true,
		"categories": true,
	}

	for i, filter := range profile.Filters {
		if !validFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}

func (c *Cache) getProfileFilePath(profileName string) string {
	return filepath.Join(c.profilesDir, profileName+".yml")
}
