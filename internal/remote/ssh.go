package remote

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/flotilla-io/flotilla/pkg/fleet"
)

const (
	sshPort           = "22"
	dialTimeout       = 20 * time.Second
	keepaliveInterval = 4 * time.Minute
)

// PassphraseFunc prompts for a private key passphrase.
type PassphraseFunc func(keyPath string) ([]byte, error)

// TerminalPassphrase reads a passphrase from the controlling terminal without
// echo.
func TerminalPassphrase(keyPath string) ([]byte, error) {
	fmt.Fprintf(os.Stderr, "Enter passphrase for %s: ", keyPath)
	defer fmt.Fprintln(os.Stderr)
	return term.ReadPassword(int(syscall.Stdin))
}

// SSHDialer builds DialFuncs that speak real SSH with public-key auth.
type SSHDialer struct {
	// Passphrase is consulted when a private key is passphrase-protected.
	Passphrase PassphraseFunc
}

// Dial opens an authenticated SSH transport to the node using its assigned
// username and key file.
func (d *SSHDialer) Dial(node *fleet.Node) (Transport, error) {
	if node.Absent() {
		return nil, fleet.ErrNodeAbsent
	}
	addr := node.Addr()
	if addr == "" {
		return nil, fmt.Errorf("node %s has no reachable address", node.DisplayName())
	}

	signer, err := d.loadKey(node.KeyFile)
	if err != nil {
		return nil, err
	}

	cfg := &ssh.ClientConfig{
		User:            node.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}

	client, err := ssh.Dial("tcp", net.JoinHostPort(addr, sshPort), cfg)
	if err != nil {
		return nil, fmt.Errorf("ssh login to %s: %w", addr, err)
	}

	t := &sshTransport{client: client}
	t.alive.Store(true)
	go t.watch()
	return t, nil
}

func (d *SSHDialer) loadKey(keyPath string) (ssh.Signer, error) {
	if keyPath == "" {
		return nil, errors.New("no key file assigned to node")
	}
	pem, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(pem)
	if err == nil {
		return signer, nil
	}

	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		prompt := d.Passphrase
		if prompt == nil {
			prompt = TerminalPassphrase
		}
		passphrase, perr := prompt(keyPath)
		if perr != nil {
			return nil, fmt.Errorf("reading passphrase: %w", perr)
		}
		return ssh.ParsePrivateKeyWithPassphrase(pem, passphrase)
	}
	return nil, fmt.Errorf("parsing key file: %w", err)
}

// sshTransport wraps an ssh.Client. Keepalives run every few minutes; a
// failed keepalive or closed connection flips the transport to inactive so
// the session manager re-logins transparently on next use.
type sshTransport struct {
	client *ssh.Client
	alive  atomic.Bool
}

func (t *sshTransport) watch() {
	done := make(chan struct{})
	go func() {
		t.client.Wait()
		t.alive.Store(false)
		close(done)
	}()

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if _, _, err := t.client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				t.alive.Store(false)
				return
			}
		}
	}
}

func (t *sshTransport) Connected() bool {
	return t.alive.Load()
}

func (t *sshTransport) OpenShell() (Channel, error) {
	sess, err := t.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("opening shell channel: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty("xterm", 40, 120, modes); err != nil {
		sess.Close()
		return nil, fmt.Errorf("requesting pty: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, err
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return nil, err
	}

	if err := sess.Shell(); err != nil {
		sess.Close()
		return nil, fmt.Errorf("starting shell: %w", err)
	}

	return &shellChannel{sess: sess, in: stdin, out: stdout}, nil
}

func (t *sshTransport) OpenTransfer() (Transfer, error) {
	client, err := sftp.NewClient(t.client)
	if err != nil {
		return nil, fmt.Errorf("opening sftp sub-channel: %w", err)
	}
	return &sftpTransfer{client: client}, nil
}

func (t *sshTransport) Close() error {
	t.alive.Store(false)
	return t.client.Close()
}

// shellChannel adapts an ssh.Session with a PTY to the Channel interface.
// With a PTY, remote stderr is merged into the stdout stream.
type shellChannel struct {
	sess *ssh.Session
	in   interface {
		Write([]byte) (int, error)
		Close() error
	}
	out interface {
		Read([]byte) (int, error)
	}
}

func (c *shellChannel) Read(p []byte) (int, error)  { return c.out.Read(p) }
func (c *shellChannel) Write(p []byte) (int, error) { return c.in.Write(p) }

func (c *shellChannel) Close() error {
	c.in.Close()
	return c.sess.Close()
}

// sftpTransfer adapts an sftp.Client to the Transfer interface.
type sftpTransfer struct {
	client *sftp.Client
}

func (t *sftpTransfer) Put(localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := t.client.Create(remotePath)
	if err != nil {
		return err
	}
	if _, err := dst.ReadFrom(src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (t *sftpTransfer) Get(remotePath, localPath string) error {
	src, err := t.client.Open(remotePath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return err
	}
	if _, err := src.WriteTo(dst); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (t *sftpTransfer) Close() error {
	return t.client.Close()
}
