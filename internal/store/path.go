package store

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidPath = errors.New("store: invalid path")

const (
	userDetailsRoot = "userDetails"
	timeLoggersRoot = "timeLoggers"
	timerGroupsKey  = "timerGroups"
	timersKey       = "timers"
	editModeKey     = "isEditMode"
)

// ValidateSegment rejects empty segments and the characters the realtime
// database reserves for keys.
func ValidateSegment(segment string) error {
	if segment == "" {
		return fmt.Errorf("%w: empty segment", ErrInvalidPath)
	}
	if strings.ContainsAny(segment, "/.#$[]") {
		return fmt.Errorf("%w: segment %q contains a reserved character", ErrInvalidPath, segment)
	}
	return nil
}

// ValidatePath checks every segment of a slash separated path.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	for _, segment := range strings.Split(path, "/") {
		if err := ValidateSegment(segment); err != nil {
			return err
		}
	}
	return nil
}

// Join validates each segment and joins them with "/".
func Join(segments ...string) (string, error) {
	for _, segment := range segments {
		if err := ValidateSegment(segment); err != nil {
			return "", err
		}
	}
	return strings.Join(segments, "/"), nil
}

// Child joins a validated base path with a relative key, which may itself
// contain several segments.
func Child(base, key string) (string, error) {
	if err := ValidatePath(key); err != nil {
		return "", err
	}
	return base + "/" + key, nil
}

func UserDetailsPath(userID string) (string, error) {
	return Join(userDetailsRoot, userID)
}

func TimeLoggerPath(userID, loggerID string) (string, error) {
	return Join(timeLoggersRoot, userID, loggerID)
}

func EditModePath(userID, loggerID string) (string, error) {
	return Join(timeLoggersRoot, userID, loggerID, editModeKey)
}

func TimerGroupsPath(userID, loggerID string) (string, error) {
	return Join(timeLoggersRoot, userID, loggerID, timerGroupsKey)
}

func TimerGroupPath(userID, loggerID, groupID string) (string, error) {
	return Join(timeLoggersRoot, userID, loggerID, timerGroupsKey, groupID)
}

func TimersPath(userID, loggerID, groupID string) (string, error) {
	return Join(timeLoggersRoot, userID, loggerID, timerGroupsKey, groupID, timersKey)
}

func TimerPath(userID, loggerID, groupID, timerID string) (string, error) {
	return Join(timeLoggersRoot, userID, loggerID, timerGroupsKey, groupID, timersKey, timerID)
}

// IsWithin reports whether path is root or lies under it.
func IsWithin(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+"/")
}

// Overlaps reports whether a change at one path can affect the value at the
// other.
func Overlaps(a, b string) bool {
	return IsWithin(a, b) || IsWithin(b, a)
}

// Ancestors lists the proper ancestors of path, nearest first.
func Ancestors(path string) []string {
	var out []string
	for i := len(path) - 1; i > 0; i-- {
		if path[i] == '/' {
			out = append(out, path[:i])
		}
	}
	return out
}

// PrefixUpperBound is the smallest string greater than every path under
// root. '0' is the byte after '/'.
func PrefixUpperBound(root string) string {
	return root + "0"
}
