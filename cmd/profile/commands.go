package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"carpool-service/internal/apiclient"
	"carpool-service/internal/notify"
	"carpool-service/internal/profilepage"
	"carpool-service/pkg/imagehost"
	"carpool-service/pkg/jwt"
)

var errNotLoggedIn = errors.New("not logged in, run `profile login` first")

type LoginCommand struct {
	Email    string `short:"e" long:"email" required:"true" description:"Account email"`
	Password string `short:"p" long:"password" env:"CARPOOL_PASSWORD" required:"true" description:"Account password"`
}

func (c *LoginCommand) Execute([]string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, err := apiclient.New(cfg.APIURI)
	if err != nil {
		return err
	}
	resp, err := client.Login(ctx, c.Email, c.Password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := saveSession(&storedSession{UserID: resp.User.ID, Token: resp.Token, APIURI: cfg.APIURI}); err != nil {
		return err
	}
	fmt.Printf("Logged in as %s\n", resp.User.Name)
	return nil
}

type LogoutCommand struct{}

func (c *LogoutCommand) Execute([]string) error {
	return clearSession()
}

type ShowCommand struct{}

func (c *ShowCommand) Execute([]string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	page, err := openPage()
	if err != nil {
		return err
	}
	loadErr := page.Load(ctx)
	if err := page.Render(os.Stdout); err != nil {
		return err
	}
	return loadErr
}

type EditCommand struct {
	Name string `long:"name" description:"New display name"`
	Bio  string `long:"bio" description:"New bio"`
}

func (c *EditCommand) Execute([]string) error {
	if c.Name == "" && c.Bio == "" {
		return errors.New("nothing to change, pass --name and/or --bio")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	page, err := openPage()
	if err != nil {
		return err
	}
	if err := page.Refetch(ctx); err != nil {
		return err
	}

	page.StartEdit()
	if c.Name != "" {
		page.EditName(c.Name)
	}
	if c.Bio != "" {
		page.EditBio(c.Bio)
	}
	return page.Submit(ctx)
}

type UploadCommand struct {
	Args struct {
		File string `positional-arg-name:"FILE" description:"JPEG, PNG or GIF image"`
	} `positional-args:"yes" required:"yes"`
}

func (c *UploadCommand) Execute([]string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	page, err := openPage()
	if err != nil {
		return err
	}

	file, closer, err := profilepage.OpenFile(c.Args.File)
	if err != nil {
		return err
	}
	defer closer.Close()

	return page.UploadPicture(ctx, file)
}

type DeleteRideCommand struct {
	Args struct {
		RideID string `positional-arg-name:"RIDE_ID"`
	} `positional-args:"yes" required:"yes"`
}

func (c *DeleteRideCommand) Execute([]string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	page, err := openPage()
	if err != nil {
		return err
	}
	if err := page.Refetch(ctx); err != nil {
		return err
	}
	page.ToggleDeleteMode()
	return page.DeleteRide(ctx, c.Args.RideID)
}

type WatchCommand struct{}

func (c *WatchCommand) Execute([]string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sess, err := loadSession()
	if err != nil {
		return err
	}
	if sess == nil {
		return errNotLoggedIn
	}

	wsURL, err := notificationsURL(apiBase(sess), sess.UserID)
	if err != nil {
		return err
	}
	headers := http.Header{
		"Cookie":        []string{(&http.Cookie{Name: jwt.CookieName, Value: sess.Token}).String()},
		"Authorization": []string{"Bearer " + sess.Token},
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return fmt.Errorf("connect %s: %w", wsURL, err)
	}
	defer conn.Close()
	logrus.WithField("url", wsURL).Debug("watching notifications")

	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	for {
		var n notify.Notification
		if err := conn.ReadJSON(&n); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		fmt.Printf("%s  %s\n", time.Unix(n.TS, 0).Format("15:04:05"), n.Message)
	}
}

func apiBase(sess *storedSession) string {
	if opts.API == "" && sess.APIURI != "" {
		return sess.APIURI
	}
	return cfg.APIURI
}

// notificationsURL maps the API base URL onto the websocket endpoint of userID.
func notificationsURL(base, userID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws/users/" + userID
	return u.String(), nil
}

func openPage() (*profilepage.Page, error) {
	sess, err := loadSession()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errNotLoggedIn
	}

	client, err := apiclient.New(apiBase(sess))
	if err != nil {
		return nil, err
	}
	client.SetToken(sess.Token)

	if !cfg.ImageHostConfigured() {
		logrus.Debug("CLOUDINARY_CLOUD_NAME or CLOUDINARY_PRESET not set, uploads disabled")
	}
	images := imagehost.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryPreset)
	auth := profilepage.NewMemoryAuth(&profilepage.Session{UserID: sess.UserID, Token: sess.Token})
	return profilepage.New(client, images, auth, profilepage.NewWriterToaster(os.Stderr)), nil
}
