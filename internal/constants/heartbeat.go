package constants

// StatusAlive is the status carried by every heartbeat.
const StatusAlive = "alive"
