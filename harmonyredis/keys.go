package harmonyredis

import "fmt"

const (
	redisFieldSeq          = "seq"
	redisFieldKind         = "kind"
	redisFieldTokenID      = "token_id"
	redisFieldActorID      = "actor_id"
	redisFieldColor        = "color"
	redisFieldTable        = "table"
	redisFieldTime         = "time"
	redisFieldRedCount     = "red_count"
	redisFieldBlueCount    = "blue_count"
	redisFieldTablesTotal  = "tables_total"
	redisFieldTablesFree   = "tables_free"
	redisFieldRedWaiting   = "red_waiting"
	redisFieldBlueWaiting  = "blue_waiting"
	redisFieldTableWaiting = "table_waiting"
	redisFieldRedServed    = "red_served"
	redisFieldBlueServed   = "blue_served"
)

func redisKeyVenueEventStream(prefix, venueName string) string {
	return fmt.Sprintf("%s%s:events", prefix, venueName)
}

func redisKeyVenueState(prefix, venueName string) string {
	return fmt.Sprintf("%s%s:state", prefix, venueName)
}

func redisPubSubChannelVenueState(prefix, venueName string) string {
	return fmt.Sprintf("%s%s:state_changed", prefix, venueName)
}
