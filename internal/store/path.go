package store

import "errors"

// ErrNotFound is returned by mutations whose target document does not exist.
var ErrNotFound = errors.New("not found")

// Document paths. Every entity lives under its owner's users/{uid} subtree.

func UserPath(uid string) string { return "users/" + uid }

func TasksPath(uid string) string          { return UserPath(uid) + "/tasks" }
func TaskPath(uid, id string) string       { return TasksPath(uid) + "/" + id }
func MissionsPath(uid string) string       { return UserPath(uid) + "/missions" }
func MissionPath(uid, id string) string    { return MissionsPath(uid) + "/" + id }
func TimetablePath(uid string) string      { return UserPath(uid) + "/timetableEvents" }
func EventPath(uid, id string) string      { return TimetablePath(uid) + "/" + id }
func GoalsPath(uid, mid string) string     { return MissionPath(uid, mid) + "/goals" }
func GoalPath(uid, mid, gid string) string { return GoalsPath(uid, mid) + "/" + gid }

type scanner interface{ Scan(...any) error }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
