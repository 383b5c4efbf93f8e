package connector

import (
	"os"
	"strconv"
	"sync"
)

// AllRanks - pass to SetConnectRank to let every process connect.
const AllRanks = -1

// rankEnvVars - set by the common MPI and Slurm launchers, probed in order.
var rankEnvVars = []string{"OMPI_COMM_WORLD_RANK", "PMI_RANK", "SLURM_PROCID"}

var (
	rankOnce    sync.Once
	processRank int

	rankMu      sync.Mutex
	connectRank = 0
)

// Rank - this process's rank within its job, 0 outside any launcher.
func Rank() int {
	rankOnce.Do(func() {
		for _, name := range rankEnvVars {
			if v := os.Getenv(name); v != "" {
				if r, err := strconv.Atoi(v); err == nil {
					processRank = r

					return
				}
			}
		}
	})

	return processRank
}

// SetConnectRank - designate which rank of a cooperating job is allowed to
// open network connections and tunnels. Default 0; AllRanks disables the
// gate. Non-designated ranks silently no-op on connect, they are expected to
// receive data over other channels.
func SetConnectRank(rank int) {
	rankMu.Lock()
	defer rankMu.Unlock()

	connectRank = rank
}

// ConnectThisRank - true when this process may open connections.
func ConnectThisRank() bool {
	rankMu.Lock()
	defer rankMu.Unlock()

	return connectRank == AllRanks || connectRank == Rank()
}
