package endpoint

import (
	"net"

	"github.com/caozhiyi/quicx-go/conn"
)

// session binds one Conn to the socket that carries its datagrams. The
// socket's owning loop (sockLoop) may differ from the shard processing
// the connection's frames: a connection accepted behind a shared
// listening socket is sharded to whichever loop hash(CID) selects, while
// the socket itself stays with the acceptor loop that bound it.
type session struct {
	conn     *conn.Conn
	sockLoop *Loop
	sock     net.PacketConn
	remote   net.Addr
	localCID []byte
}
