package v2

import "github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"

func handleNull(ctx *common.Context, args []byte) ([]byte, error) {
	return nil, nil
}
