package shipments

import "fmt"

func detailsKey(id uint64) string {
	return fmt.Sprintf("shipment:%d", id)
}

func userListKey(userID uint64) string {
	return fmt.Sprintf("shipments:user:%d:list", userID)
}

func userKeysPattern(userID uint64) string {
	return fmt.Sprintf("shipments:user:%d:*", userID)
}
