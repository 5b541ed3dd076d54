package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/vctt94/bisonbotkit/logging"

	cubeathon "github.com/NikhilRaikwar/Cubeathon"
	"github.com/NikhilRaikwar/Cubeathon/client"
	"github.com/NikhilRaikwar/Cubeathon/ledger"
	"github.com/NikhilRaikwar/Cubeathon/track"
)

var (
	datadir      = flag.String("datadir", "", "Directory for config, key, db and logs")
	rpcURL       = flag.String("rpcurl", "", "Ledger JSON-RPC endpoint URL")
	contractFlag = flag.String("contract", "", "Hex id of the game contract")
	networkFlag  = flag.String("network", "", "Network passphrase")
	keyFile      = flag.String("key", "", "Path to the hex-encoded private key file")
	debugFlag    = flag.String("debug", "", "Log level (trace, debug, info, warn, error)")
	singleSigner = flag.Bool("singlesigner", false, "Allow one keyring to sign for both players")
	listenAddr   = flag.String("listen", ":8080", "HTTP listen address for the serve command")
)

const usage = `usage: cubeathon [flags] <command> [args]

commands:
  keygen                                     generate a key and print the account id
  prepare <session> <counterpart> <stake> <counterstake>
                                             sign and export a session fragment
  finalize <artifact> <stake>                import a fragment, countersign, submit
  start <session> <key2> <stake1> <stake2>   open a session with one keyring (single-signer)
  submit-result <session> <level> <time_ms> [prooffile]
                                             submit a cleared level
  session <session>                          show session state
  leaderboard                                show the global leaderboard
  track <seed> <level>                       print the generated track layout
  status <hash>                              resume polling a submitted transaction
  serve                                      run the HTTP query server
`

func main() {
	flag.Parse()
	if err := realMain(); err != nil {
		fmt.Fprintf(os.Stderr, "cubeathon: %v\n", err)
		os.Exit(1)
	}
}

func realMain() error {
	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("missing command")
	}
	cmd, args := args[0], args[1:]

	// keygen and track need no network or config.
	switch cmd {
	case "keygen":
		return cmdKeygen()
	case "track":
		return cmdTrack(args)
	}

	cfg, err := client.LoadConfig(client.ConfigOverrides{
		DataDir:           *datadir,
		RPCURL:            *rpcURL,
		NetworkPassphrase: *networkFlag,
		ContractID:        *contractFlag,
		SingleSigner:      *singleSigner,
		Debug:             *debugFlag,
	})
	if err != nil {
		return err
	}

	lb, err := logging.NewLogBackend(logging.LogConfig{
		LogFile:        filepath.Join(cfg.DataDir, "logs", "cubeathon.log"),
		DebugLevel:     cfg.Debug,
		MaxLogFiles:    10,
		MaxBufferLines: 1000,
	})
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	log := lb.Logger("CLI")

	c, err := client.New(cfg, lb.Logger("Client"))
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "prepare":
		return cmdPrepare(ctx, c, cfg, args)
	case "finalize":
		return cmdFinalize(ctx, c, cfg, args)
	case "start":
		return cmdStart(ctx, c, cfg, args)
	case "submit-result":
		return cmdSubmitResult(ctx, c, cfg, args)
	case "session":
		return cmdSession(ctx, c, args)
	case "leaderboard":
		return cmdLeaderboard(ctx, c)
	case "status":
		return cmdStatus(ctx, c, args)
	case "serve":
		return cmdServe(ctx, c, log, *listenAddr)
	}
	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

func cmdKeygen() error {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	path := *keyFile
	if path == "" {
		dir := *datadir
		if dir == "" {
			dir = "."
		}
		path = filepath.Join(dir, "cubeathon.key")
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite existing key at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	keyHex := hex.EncodeToString(priv.Serialize())
	if err := os.WriteFile(path, []byte(keyHex+"\n"), 0o600); err != nil {
		return fmt.Errorf("write key: %w", err)
	}
	fmt.Printf("key:     %s\n", path)
	fmt.Printf("account: %s\n", ledger.AccountIDFromPubKey(priv.PubKey()))
	return nil
}

func loadKey(cfg *client.Config) (*secp256k1.PrivateKey, error) {
	path := *keyFile
	if path == "" {
		path = filepath.Join(cfg.DataDir, "cubeathon.key")
	}
	return readKeyFile(path)
}

func readKeyFile(path string) (*secp256k1.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	b, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("decode key file %s: %w", path, err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("key file %s: want 32 bytes, got %d", path, len(b))
	}
	return secp256k1.PrivKeyFromBytes(b), nil
}

func parseUint32(s, what string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", what, s, err)
	}
	return uint32(v), nil
}

func parseStake(s string) (ledger.I128, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return ledger.I128{}, fmt.Errorf("bad stake %q: %w", s, err)
	}
	return ledger.I128FromInt64(v), nil
}

func cmdPrepare(ctx context.Context, c *client.Client, cfg *client.Config, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("usage: prepare <session> <counterpart> <stake> <counterstake>")
	}
	sessionID, err := parseUint32(args[0], "session id")
	if err != nil {
		return err
	}
	counterpart := ledger.AccountID(args[1])
	if _, err := counterpart.PubKey(); err != nil {
		return fmt.Errorf("bad counterpart account: %w", err)
	}
	stake, err := parseStake(args[2])
	if err != nil {
		return err
	}
	counterStake, err := parseStake(args[3])
	if err != nil {
		return err
	}
	priv, err := loadKey(cfg)
	if err != nil {
		return err
	}
	artifact, err := c.Prepare(ctx, priv, sessionID, counterpart, stake, counterStake)
	if err != nil {
		return err
	}
	fmt.Println("hand this artifact to your counterpart:")
	fmt.Println(artifact)
	return nil
}

func cmdFinalize(ctx context.Context, c *client.Client, cfg *client.Config, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: finalize <artifact> <stake>")
	}
	stake, err := parseStake(args[1])
	if err != nil {
		return err
	}
	priv, err := loadKey(cfg)
	if err != nil {
		return err
	}
	sessionID, out, err := c.Finalize(ctx, priv, args[0], stake)
	if err != nil {
		return err
	}
	fmt.Printf("session %d: tx %s %s\n", sessionID, out.Hash, out.Status)
	if out.Diag != "" {
		fmt.Printf("diagnostic: %s\n", out.Diag)
	}
	return nil
}

func cmdStart(ctx context.Context, c *client.Client, cfg *client.Config, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("usage: start <session> <key2file> <stake1> <stake2>")
	}
	sessionID, err := parseUint32(args[0], "session id")
	if err != nil {
		return err
	}
	priv2, err := readKeyFile(args[1])
	if err != nil {
		return err
	}
	stake1, err := parseStake(args[2])
	if err != nil {
		return err
	}
	stake2, err := parseStake(args[3])
	if err != nil {
		return err
	}
	priv1, err := loadKey(cfg)
	if err != nil {
		return err
	}
	out, err := c.Start(ctx, priv1, priv2, sessionID, stake1, stake2)
	if err != nil {
		return err
	}
	fmt.Printf("session %d: tx %s %s\n", sessionID, out.Hash, out.Status)
	return nil
}

func cmdSubmitResult(ctx context.Context, c *client.Client, cfg *client.Config, args []string) error {
	if len(args) != 3 && len(args) != 4 {
		return fmt.Errorf("usage: submit-result <session> <level> <time_ms> [prooffile]")
	}
	sessionID, err := parseUint32(args[0], "session id")
	if err != nil {
		return err
	}
	level, err := parseUint32(args[1], "level")
	if err != nil {
		return err
	}
	timeMS, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("bad time %q: %w", args[2], err)
	}
	var proof []byte
	if len(args) == 4 {
		proof, err = os.ReadFile(args[3])
		if err != nil {
			return fmt.Errorf("read proof: %w", err)
		}
	}
	priv, err := loadKey(cfg)
	if err != nil {
		return err
	}
	commitment, err := cubeathon.CourseCommitment(sessionID, int(level))
	if err != nil {
		return err
	}
	gameOver, out, err := c.SubmitResult(ctx, priv, sessionID, level, timeMS, proof, commitment)
	if err != nil {
		return err
	}
	fmt.Printf("level %d: tx %s %s\n", level, out.Hash, out.Status)
	if gameOver {
		fmt.Println("session is over")
	}
	return nil
}

func cmdSession(ctx context.Context, c *client.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: session <session>")
	}
	sessionID, err := parseUint32(args[0], "session id")
	if err != nil {
		return err
	}
	state, session, err := c.SessionState(ctx, sessionID)
	if err != nil {
		return err
	}
	fmt.Printf("session %d: %s\n", sessionID, state)
	if session == nil {
		return nil
	}
	fmt.Printf("player1: %s (stake %s, cleared %d)\n",
		session.Player1, session.Stake1, session.Progress1.LevelsCleared)
	fmt.Printf("player2: %s (stake %s, cleared %d)\n",
		session.Player2, session.Stake2, session.Progress2.LevelsCleared)
	if session.Winner != nil {
		fmt.Printf("winner:  %s\n", *session.Winner)
	}
	return nil
}

func cmdLeaderboard(ctx context.Context, c *client.Client) error {
	board, err := c.GetLeaderboard(ctx)
	if err != nil {
		return err
	}
	if len(board) == 0 {
		fmt.Println("leaderboard is empty")
		return nil
	}
	for i, e := range board {
		fmt.Printf("%2d. %s  %dms  (session %d)\n", i+1, e.Player, e.TimeMS, e.SessionID)
	}
	return nil
}

func cmdTrack(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: track <seed> <level>")
	}
	seed, err := parseUint32(args[0], "seed")
	if err != nil {
		return err
	}
	level, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad level %q: %w", args[1], err)
	}
	layout, err := track.Generate(seed, level)
	if err != nil {
		return err
	}
	commitment := layout.Commitment()
	fmt.Printf("seed %d level %d, commitment %x\n", seed, level, commitment)
	for i, o := range layout.Obstacles {
		fmt.Printf("%2d. distance %5d  gap [%d, %d)\n",
			i+1, o.Distance, o.GapStart, o.GapStart+o.GapWidth)
	}
	return nil
}

func cmdStatus(ctx context.Context, c *client.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: status <hash>")
	}
	out, err := c.Resume(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("tx %s: %s\n", out.Hash, out.Status)
	if out.Diag != "" {
		fmt.Printf("diagnostic: %s\n", out.Diag)
	}
	return nil
}
