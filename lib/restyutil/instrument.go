package restyutil

import (
	"fmt"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// Output receives a rendered request/response pair under a unique id.
type Output interface {
	Write(id string, contents string)
}

// DumpExchanges writes every completed exchange of `client` to `output`,
// file names are `<prefix>-<n>.txt`. A nil output makes this a no-op.
func DumpExchanges(client *resty.Client, prefix string, output Output) {
	if output == nil {
		return
	}

	var idcounter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := atomic.AddUint64(&idcounter, 1)
		output.Write(fmt.Sprintf("%s-%03d.txt", prefix, id), formatHttpMessage(res))
		return nil
	})
}
