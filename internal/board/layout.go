package board

// Shared-store layout:
//
//	queue/{id}                                -> {timestamp, status:"waiting"}
//	chatRooms/{roomId}/users/{id}             -> true (exactly 2 entries)
//	chatRooms/{roomId}/createdAt              -> millis
//	chatRooms/{roomId}/lastActivity           -> millis
//	chatRooms/{roomId}/status                 -> "active" | "inactive"
//	chatRooms/{roomId}/messages/{messageId}   -> {text, sender, timestamp}
//	chatRooms/{roomId}/typing/{id}            -> true (absent = not typing)
//	chatRooms/{roomId}/connected/{id}         -> true (absent = offline)
//
// Presence-like state is always key existence, never a boolean that could go
// stale: disconnect cleanup only has to delete the key.
const (
	QueuePath = "queue"
	RoomsPath = "chatRooms"
)

const (
	RoomStatusActive   = "active"
	RoomStatusInactive = "inactive"
)

// returns the queue entry path for a user
func QueueEntryPath(userID string) string {
	return QueuePath + "/" + userID
}

// returns the root path of a room
func RoomPath(roomID string) string {
	return RoomsPath + "/" + roomID
}

// returns the participant-set path of a room
func RoomUsersPath(roomID string) string {
	return RoomPath(roomID) + "/users"
}

// returns the status path of a room
func RoomStatusPath(roomID string) string {
	return RoomPath(roomID) + "/status"
}

// returns the message log path of a room
func RoomMessagesPath(roomID string) string {
	return RoomPath(roomID) + "/messages"
}

// returns a user's typing entry path in a room
func RoomTypingPath(roomID, userID string) string {
	return RoomPath(roomID) + "/typing/" + userID
}

// returns a user's presence entry path in a room
func RoomConnectedPath(roomID, userID string) string {
	return RoomPath(roomID) + "/connected/" + userID
}
