package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandFetch はアラートを1回取得してJSONを標準出力に書き出すことを示す。
	CommandFetch Command = "fetch"
	// CommandWatch は稼働中のAPIサーバーをポーリングして端末にアラートを表示することを示す。
	CommandWatch Command = "watch"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "fetch":
		return CommandFetch
	case "watch":
		return CommandWatch
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
