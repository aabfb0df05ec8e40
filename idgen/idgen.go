package idgen

import (
	"hash/fnv"
	"os"
	"strconv"

	"github.com/fundwit/go-commons/types"
	"github.com/sony/sonyflake"
)

// NewWorker returns a sonyflake worker whose machine id comes from MACHINE_ID, or a hash of the hostname.
func NewWorker() *sonyflake.Sonyflake {
	return sonyflake.NewSonyflake(sonyflake.Settings{MachineID: machineID})
}

func NextID(idWorker *sonyflake.Sonyflake) types.ID {
	id, err := idWorker.NextID()
	if err != nil {
		panic(err)
	}
	return types.ID(id)
}

func machineID() (uint16, error) {
	if v := os.Getenv("MACHINE_ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return 0, err
		}
		return uint16(id), nil
	}
	hostname, err := os.Hostname()
	if err != nil {
		return 0, err
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(hostname))
	sum := h.Sum32()
	return uint16(sum>>16) ^ uint16(sum), nil
}
